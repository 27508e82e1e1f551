package domain

// BundleDescriptor is one user-selectable unit of software plus shell hooks.
type BundleDescriptor struct {
	ID        string
	DefaultOn bool
	// DefaultFlag is the default line as read from a text catalog.
	DefaultFlag string
	Packages  []string
	Label     string
	Setup     []string
	Prepare   []string
}

type CatalogTab struct {
	Label   string
	Bundles []BundleDescriptor
}
