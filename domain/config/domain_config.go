package config

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Conversation constraints
	MaxMessagesPerConversation int
	DefaultConversationTitle   string

	// Message constraints
	MaxContentLength  int
	AllowEmptyContent bool

	// Mutation constraints
	MaxBatchPositionUpdates int

	// Duplicate placement: a copy lands offset from its original
	DuplicateOffsetX float64
	DuplicateOffsetY float64

	// Layout spacing
	LayoutHorizontalSpacing float64
	LayoutVerticalSpacing   float64
	LayoutRootX             float64
	LayoutRootY             float64
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxMessagesPerConversation: 10000,
		DefaultConversationTitle:   "New conversation",

		MaxContentLength:  400000,
		AllowEmptyContent: true,

		MaxBatchPositionUpdates: 100,

		DuplicateOffsetX: 30,
		DuplicateOffsetY: 30,

		LayoutHorizontalSpacing: 360,
		LayoutVerticalSpacing:   80,
		LayoutRootX:             400,
		LayoutRootY:             100,
	}
}
