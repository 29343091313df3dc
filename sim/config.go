package sim

// Config bundles every policy knob spec.md leaves as a collaborator input:
// soup size, seed, mutation rate, population cap, and the reaper/defrag
// trigger thresholds. See spec.md §9 Open Questions: no default ancestor
// genome is baked in here, and there is no lethal-error threshold — errors
// are counted but never fatal on their own unless ErrorThreshold is set.
type Config struct {
	SoupSize     int
	Seed         int64
	MutationRate float64
	MaxOrganisms int

	// DefragTheta is the fragmentation ratio (spec.md §4.4) above which the
	// defragmenter is eligible to run.
	DefragTheta float64

	// CheckSpawnOwnership enables SPAWN's ownership-consistency check
	// (spec.md §4.3, marked optional there).
	CheckSpawnOwnership bool

	// ErrorThreshold is a policy knob (spec.md §7, §9 Open Question): 0
	// (the default) means errors are never lethal. A positive value kills
	// an organism once its error counter reaches it.
	ErrorThreshold int64
}

// DefaultConfig returns the spec's documented defaults: no lethal error
// threshold, ownership checking enabled, and a defrag trigger consistent
// with the theta used in the worked fragmentation scenario (spec.md §8
// scenario 3).
func DefaultConfig() Config {
	return Config{
		SoupSize:            1 << 17,
		Seed:                1,
		MutationRate:        0.0,
		MaxOrganisms:        64,
		DefragTheta:         0.5,
		CheckSpawnOwnership: true,
		ErrorThreshold:      0,
	}
}
