package schedule

import (
	"errors"
	"reflect"
	"testing"
)

func denseFixture() Weekly {
	w := Empty(active)
	w.Days[Monday] = Daily{Periods: []Period{
		{0, 25200, locked},
		{25200, 72000, active},
		{72000, DaySeconds, locked},
	}}
	w.Days[Saturday] = Daily{Periods: []Period{
		{0, 36000, active},
		{36000, 43200, group1},
		{43200, 50400, active},
		{50400, 54000, group1},
		{54000, DaySeconds, active},
	}}
	w.Days[Sunday] = Daily{Periods: []Period{{0, DaySeconds, locked}}}
	return w
}

func assertDense(t *testing.T, w Weekly) {
	t.Helper()
	if len(w.Days) != 7 {
		t.Fatalf("got %d days, want 7", len(w.Days))
	}
	for _, day := range Days {
		periods := w.Days[day].Periods
		if len(periods) == 0 {
			t.Fatalf("%s: no periods", day)
		}
		if periods[0].From != 0 {
			t.Errorf("%s: first period starts at %d", day, periods[0].From)
		}
		if last := periods[len(periods)-1]; last.To != DaySeconds {
			t.Errorf("%s: last period ends at %d", day, last.To)
		}
		for i := 1; i < len(periods); i++ {
			if periods[i-1].To != periods[i].From {
				t.Errorf("%s: gap or overlap between %v and %v", day, periods[i-1], periods[i])
			}
		}
	}
}

func assertSameStates(t *testing.T, got, want Weekly) {
	t.Helper()
	for _, day := range Days {
		for second := 0; second < DaySeconds; second++ {
			g, gok := got.Days[day].StateAt(second)
			w, wok := want.Days[day].StateAt(second)
			if gok != wok || !g.Equal(w) {
				t.Fatalf("%s %s: got %v, want %v", day, FormatClock(second), g, w)
			}
		}
	}
}

func TestPack(t *testing.T) {
	p := NewPacker(active)
	sparse, err := p.Pack(denseFixture())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	want := Weekly{Days: map[Day]Daily{
		Monday:   {Periods: []Period{{0, 25200, locked}, {72000, DaySeconds, locked}}},
		Saturday: {Periods: []Period{{36000, 43200, group1}, {50400, 54000, group1}}},
		Sunday:   {Periods: []Period{{0, DaySeconds, locked}}},
	}}
	if !reflect.DeepEqual(sparse, want) {
		t.Errorf("got %v\nwant %v", sparse, want)
	}
}

func TestPack_DefaultComparesExtra(t *testing.T) {
	p := NewPacker(active)
	w := Empty(active)
	withExtra := active
	withExtra.Extra = "g1"
	w.Days[Thursday] = Daily{Periods: []Period{{0, DaySeconds, withExtra}}}

	sparse, err := p.Pack(w)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, ok := sparse.Days[Thursday]; !ok {
		t.Error("ACTIVE with an extra is not the default and must be kept")
	}
	if len(sparse.Days) != 1 {
		t.Errorf("got %d days, want 1", len(sparse.Days))
	}
}

func TestPack_Invalid(t *testing.T) {
	p := NewPacker(active)
	w := Empty(active)
	w.Days[Monday] = Daily{Periods: []Period{{0, 50000, locked}, {40000, DaySeconds, active}}}
	if _, err := p.Pack(w); !errors.Is(err, ErrScheduleInvalid) {
		t.Errorf("got %v, want ErrScheduleInvalid", err)
	}
}

func TestUnpack(t *testing.T) {
	p := NewPacker(active)
	sparse := Weekly{Days: map[Day]Daily{
		Wednesday: {Periods: []Period{{3600, 7200, locked}, {7200, 9000, group1}, {80000, DaySeconds, locked}}},
		Sunday:    {Periods: []Period{{0, DaySeconds, locked}}},
	}}

	dense, err := p.Unpack(sparse)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	assertDense(t, dense)

	wantWednesday := []Period{
		{0, 3600, active},
		{3600, 7200, locked},
		{7200, 9000, group1},
		{9000, 80000, active},
		{80000, DaySeconds, locked},
	}
	if got := dense.Days[Wednesday].Periods; !reflect.DeepEqual(got, wantWednesday) {
		t.Errorf("Wednesday: got %v\nwant %v", got, wantWednesday)
	}
	if got := dense.Days[Sunday].Periods; len(got) != 1 {
		t.Errorf("Sunday: a full-day period needs no fillers, got %v", got)
	}
	if got := dense.Days[Tuesday].Periods; !reflect.DeepEqual(got, []Period{{0, DaySeconds, active}}) {
		t.Errorf("Tuesday: got %v", got)
	}
}

func TestUnpack_EmptyInput(t *testing.T) {
	p := NewPacker(active)
	for name, sparse := range map[string]Weekly{"nil map": {}, "empty map": {Days: map[Day]Daily{}}} {
		t.Run(name, func(t *testing.T) {
			dense, err := p.Unpack(sparse)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if !reflect.DeepEqual(dense, Empty(active)) {
				t.Errorf("got %v, want Empty()", dense)
			}
		})
	}
}

func TestUnpack_Invalid(t *testing.T) {
	p := NewPacker(active)
	sparse := Weekly{Days: map[Day]Daily{Monday: {Periods: []Period{{500, 100, locked}}}}}
	if _, err := p.Unpack(sparse); !errors.Is(err, ErrScheduleInvalid) {
		t.Errorf("got %v, want ErrScheduleInvalid", err)
	}
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	p := NewPacker(active)
	dense := denseFixture()

	sparse, err := p.Pack(dense)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	again, err := p.Unpack(sparse)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	assertDense(t, again)
	assertSameStates(t, again, dense)
}

func TestUnpackPack_Idempotent(t *testing.T) {
	p := NewPacker(active)
	sparse := Weekly{Days: map[Day]Daily{
		Monday: {Periods: []Period{{3600, 7200, locked}, {10000, 20000, group1}}},
		Friday: {Periods: []Period{{0, 100, locked}}},
	}}

	dense, err := p.Unpack(sparse)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	packed, err := p.Pack(dense)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !reflect.DeepEqual(packed, sparse) {
		t.Errorf("got %v\nwant %v", packed, sparse)
	}
}

func TestEmpty_PackUnpack(t *testing.T) {
	p := NewPacker(active)
	sparse, err := p.Pack(p.Empty())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(sparse.Days) != 0 {
		t.Errorf("got %d days, want none", len(sparse.Days))
	}

	dense, err := p.Unpack(sparse)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for _, day := range Days {
		want := []Period{{0, DaySeconds, active}}
		if got := dense.Days[day].Periods; !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %v", day, got)
		}
	}
}
