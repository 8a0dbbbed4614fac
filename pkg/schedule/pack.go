package schedule

import "github.com/screentime-server/screentime-server/pkg/devicestate"

// Packer converts between the dense form used at runtime and the sparse form used
// for storage. Periods equal to Default are the background that sparse form omits.
type Packer struct {
	Default devicestate.Value
}

// NewPacker returns a packer with def as the background state.
func NewPacker(def devicestate.Value) *Packer {
	return &Packer{Default: def}
}

// Empty returns a dense schedule in the packer's default state.
func (p *Packer) Empty() Weekly {
	return Empty(p.Default)
}

// Pack drops default periods and the days left without any.
func (p *Packer) Pack(dense Weekly) (Weekly, error) {
	if err := Verify(dense); err != nil {
		return Weekly{}, err
	}

	sparse := Weekly{Days: make(map[Day]Daily)}
	for day, daily := range dense.Days {
		var periods []Period
		for _, period := range daily.Periods {
			if period.State.Equal(p.Default) {
				continue
			}
			periods = append(periods, period)
		}
		if len(periods) == 0 {
			continue
		}
		sparse.Days[day] = Daily{Periods: periods}
	}
	return sparse, nil
}

// Unpack fills every gap of every day with default periods so the result covers
// the whole week.
func (p *Packer) Unpack(sparse Weekly) (Weekly, error) {
	if err := Verify(sparse); err != nil {
		return Weekly{}, err
	}

	dense := Weekly{Days: make(map[Day]Daily, len(Days))}
	for _, day := range Days {
		dense.Days[day] = Daily{Periods: p.fillGaps(sparse.Days[day].Periods)}
	}
	return dense, nil
}

func (p *Packer) fillGaps(periods []Period) []Period {
	out := make([]Period, 0, 2*len(periods)+1)
	previousTo := 0
	for _, period := range periods {
		if period.From > previousTo {
			out = append(out, Period{From: previousTo, To: period.From, State: p.Default})
		}
		out = append(out, period)
		previousTo = period.To
	}
	if previousTo < DaySeconds {
		out = append(out, Period{From: previousTo, To: DaySeconds, State: p.Default})
	}
	return out
}
