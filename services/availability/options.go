// Package availability implements the slot scanning, caching and targeted
// search engine that feeds the booking monitors.
package availability

// Options is the facility's static option set: the playing levels it
// offers, the court sides, and the fixed start-hour table per level.
// Every full scan walks the cartesian product of levels and sides.
type Options struct {
	levels []string
	sides  []string
	hours  map[string][]string
}

// DefaultOptions returns the configured option set for the club.
// Hours mirror the facility's published timetable and must stay in
// ascending order; fixed-session monitors iterate them as given.
func DefaultOptions() *Options {
	return &Options{
		levels: []string{"beginner", "intermediate", "advanced"},
		sides:  []string{"left", "right"},
		hours: map[string][]string{
			"beginner":     {"09:00", "10:30", "17:00", "18:30"},
			"intermediate": {"09:00", "10:30", "12:00", "17:00", "18:30", "20:00"},
			"advanced":     {"12:00", "18:30", "20:00", "21:30"},
		},
	}
}

// Levels returns the playing levels the facility offers.
func (o *Options) Levels() []string { return o.levels }

// Sides returns the court sides the facility distinguishes.
func (o *Options) Sides() []string { return o.sides }

// HoursForLevel returns the valid session start hours for a level, in
// ascending order. Unknown levels yield nil.
func (o *Options) HoursForLevel(level string) []string {
	return o.hours[level]
}

// ValidLevel reports whether the facility offers the level at all.
func (o *Options) ValidLevel(level string) bool {
	_, ok := o.hours[level]
	return ok
}

// ValidHour reports whether hour is a session start the facility schedules
// for the level.
func (o *Options) ValidHour(level, hour string) bool {
	for _, h := range o.hours[level] {
		if h == hour {
			return true
		}
	}
	return false
}

// Combos walks every attribute combination (level x side) the facility
// sells, in stable order.
func (o *Options) Combos() []map[string]string {
	combos := make([]map[string]string, 0, len(o.levels)*len(o.sides))
	for _, level := range o.levels {
		for _, side := range o.sides {
			combos = append(combos, map[string]string{
				"level": level,
				"side":  side,
			})
		}
	}
	return combos
}
