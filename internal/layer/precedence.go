package layer

// Standard priority levels for configuration layers.
// Higher values override lower values during merging.
const (
	PriorityDefaults  = 0
	PrioritySystem    = 50
	PriorityUser      = 100
	PriorityWorkspace = 200
	PriorityPlugin    = 300
	PriorityEnv       = 500
	PriorityArgs      = 600
	PrioritySession   = 1000
)

// DefaultPriority returns the default priority for a given source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceSystem:
		return PrioritySystem
	case SourceUser:
		return PriorityUser
	case SourceWorkspace:
		return PriorityWorkspace
	case SourcePlugin:
		return PriorityPlugin
	case SourceEnv:
		return PriorityEnv
	case SourceArgs:
		return PriorityArgs
	case SourceSession:
		return PrioritySession
	default:
		return PriorityDefaults
	}
}
