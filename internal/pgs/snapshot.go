package pgs

import "github.com/ubuntu/strictpgs/internal/pgs/policy"

// Snapshot is the categorized content of a store, suitable for YAML serialization.
type Snapshot struct {
	Ranges policy.Ranges `yaml:"ranges"`

	SystemUsers     []string `yaml:"system_users"`
	NormalUsers     []string `yaml:"normal_users"`
	SoftwareUsers   []string `yaml:"software_users"`
	DeprecatedUsers []string `yaml:"deprecated_users"`

	SystemGroups     []string `yaml:"system_groups"`
	PerUserGroups    []string `yaml:"per_user_groups"`
	StandAloneGroups []string `yaml:"stand_alone_groups"`
	DeviceGroups     []string `yaml:"device_groups"`
	SoftwareGroups   []string `yaml:"software_groups"`
	DeprecatedGroups []string `yaml:"deprecated_groups"`

	SecondaryGroups map[string][]string `yaml:"secondary_groups"`
}

// Snapshot returns the category lists and secondary groups of the store.
func (s *Store) Snapshot() Snapshot {
	secondary := make(map[string][]string, len(s.secondaryGroups))
	for u, groups := range s.secondaryGroups {
		if len(groups) > 0 {
			secondary[u] = append([]string(nil), groups...)
		}
	}

	return Snapshot{
		Ranges: s.ranges,

		SystemUsers:     s.SystemUsers(),
		NormalUsers:     s.NormalUsers(),
		SoftwareUsers:   s.SoftwareUsers(),
		DeprecatedUsers: s.DeprecatedUsers(),

		SystemGroups:     s.SystemGroups(),
		PerUserGroups:    s.PerUserGroups(),
		StandAloneGroups: s.StandAloneGroups(),
		DeviceGroups:     s.DeviceGroups(),
		SoftwareGroups:   s.SoftwareGroups(),
		DeprecatedGroups: s.DeprecatedGroups(),

		SecondaryGroups: secondary,
	}
}
