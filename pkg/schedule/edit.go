package schedule

// AddPeriod paints added over day. Whatever previously occupied [added.From, added.To)
// is cut away or removed, and added takes its place. Other days are left untouched and
// w itself is not modified.
//
// AddPeriod does not validate added. Run Verify on the result before storing it.
func AddPeriod(w Weekly, day Day, added Period) Weekly {
	out := w.Clone()
	if out.Days == nil {
		out.Days = make(map[Day]Daily)
	}

	existing := out.Days[day].Periods
	periods := make([]Period, 0, len(existing)+2)
	for _, period := range existing {
		if !period.Overlaps(added) {
			periods = append(periods, period)
			continue
		}
		if period.From < added.From {
			periods = append(periods, Period{From: period.From, To: added.From, State: period.State})
		}
		if period.To > added.To {
			periods = append(periods, Period{From: added.To, To: period.To, State: period.State})
		}
	}
	periods = append(periods, added)
	sortPeriods(periods)

	out.Days[day] = Daily{Periods: periods}
	return out
}
