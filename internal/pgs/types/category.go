package types

import "fmt"

// UserCategory is the category a passwd entry belongs to.
type UserCategory int

// User categories, in the order of their passwd file section.
const (
	UserSystem UserCategory = iota
	UserNormal
	UserSoftware
	UserDeprecated
)

// UserCategories lists every user category in passwd file order.
var UserCategories = []UserCategory{UserSystem, UserNormal, UserSoftware, UserDeprecated}

var userCategoryNames = map[UserCategory]string{
	UserSystem:     "system",
	UserNormal:     "normal",
	UserSoftware:   "software",
	UserDeprecated: "deprecated",
}

var userCategoryHeaders = map[UserCategory]string{
	UserSystem:     "# system users",
	UserNormal:     "# normal users",
	UserSoftware:   "# software users",
	UserDeprecated: "# deprecated",
}

// String returns the name of the category.
func (c UserCategory) String() string {
	if n, ok := userCategoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UserCategory(%d)", int(c))
}

// Header returns the passwd file section header of the category.
func (c UserCategory) Header() string {
	return userCategoryHeaders[c]
}

// ParseUserCategory returns the user category named name.
func ParseUserCategory(name string) (UserCategory, error) {
	for _, c := range UserCategories {
		if userCategoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown user category %q", name)
}

// UserCategoryFromHeader returns the category introduced by the section header line.
func UserCategoryFromHeader(line string) (UserCategory, bool) {
	for _, c := range UserCategories {
		if userCategoryHeaders[c] == line {
			return c, true
		}
	}
	return 0, false
}

// GroupCategory is the category a group entry belongs to.
type GroupCategory int

// Group categories, in the order of their group file section.
const (
	GroupSystem GroupCategory = iota
	GroupPerUser
	GroupStandAlone
	GroupDevice
	GroupSoftware
	GroupDeprecated
)

// GroupCategories lists every group category in group file order.
var GroupCategories = []GroupCategory{GroupSystem, GroupPerUser, GroupStandAlone, GroupDevice, GroupSoftware, GroupDeprecated}

var groupCategoryNames = map[GroupCategory]string{
	GroupSystem:     "system",
	GroupPerUser:    "per-user",
	GroupStandAlone: "stand-alone",
	GroupDevice:     "device",
	GroupSoftware:   "software",
	GroupDeprecated: "deprecated",
}

var groupCategoryHeaders = map[GroupCategory]string{
	GroupSystem:     "# system groups",
	GroupPerUser:    "# per-user groups",
	GroupStandAlone: "# stand-alone groups",
	GroupDevice:     "# device groups",
	GroupSoftware:   "# software groups",
	GroupDeprecated: "# deprecated",
}

// String returns the name of the category.
func (c GroupCategory) String() string {
	if n, ok := groupCategoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("GroupCategory(%d)", int(c))
}

// Header returns the group file section header of the category.
func (c GroupCategory) Header() string {
	return groupCategoryHeaders[c]
}

// ParseGroupCategory returns the group category named name.
func ParseGroupCategory(name string) (GroupCategory, error) {
	for _, c := range GroupCategories {
		if groupCategoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown group category %q", name)
}

// GroupCategoryFromHeader returns the category introduced by the section header line.
func GroupCategoryFromHeader(line string) (GroupCategory, bool) {
	for _, c := range GroupCategories {
		if groupCategoryHeaders[c] == line {
			return c, true
		}
	}
	return 0, false
}
