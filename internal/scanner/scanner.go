package scanner

// ItemType represents the kind of installer item
type ItemType int

const (
	TypeUnknown ItemType = iota
	TypeDiskImage
	TypeFlatPackage
	TypeBundlePackage
	TypeDistribution
)

// MaxDepth bounds every recursive search into an extracted container
const MaxDepth = 4

// String returns the string representation of ItemType
func (t ItemType) String() string {
	switch t {
	case TypeDiskImage:
		return "disk image"
	case TypeFlatPackage:
		return "flat package"
	case TypeBundlePackage:
		return "bundle package"
	case TypeDistribution:
		return "distribution"
	default:
		return "unknown"
	}
}

// IsPackage reports whether t is either package flavour
func (t ItemType) IsPackage() bool {
	return t == TypeFlatPackage || t == TypeBundlePackage
}

// Match is an item found by a search below some root
type Match struct {
	Path    string // absolute
	RelPath string // relative to the search root
	Depth   int    // number of separators in RelPath
}
