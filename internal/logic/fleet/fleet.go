// Package fleet holds the plain domain types shared by the logic layer.
// Provider SDK objects never cross into it; adapters convert at the boundary.
package fleet

// ServerStatus is the provider-reported run state of a server.
type ServerStatus string

const (
	ServerStatusRunning ServerStatus = "running"
	ServerStatusStopped ServerStatus = "stopped"
	ServerStatusUnknown ServerStatus = "unknown"
)

// Server is a read-through snapshot of a provider server, taken fresh each
// poll cycle. Identity is the name; it is stable across rebuilds only when
// the name is reused.
type Server struct {
	Name       string
	Status     ServerStatus
	Type       string
	Image      string
	Location   string
	SSHKeys    []string
	PublicIPv4 string
}

// CreateSpec carries everything needed to recreate a server identically.
type CreateSpec struct {
	Name     string
	Type     string
	Image    string
	Location string
	SSHKeys  []string
}

// SpecFromServer derives a create spec from a live server snapshot.
// The provider does not report SSH keys after creation, so the caller is
// responsible for filling SSHKeys from configuration if it has them.
func SpecFromServer(s Server) CreateSpec {
	return CreateSpec{
		Name:     s.Name,
		Type:     s.Type,
		Image:    s.Image,
		Location: s.Location,
		SSHKeys:  s.SSHKeys,
	}
}

// UsageSample is one traffic measurement for one server. Units are GB.
// UsedGB may exceed TotalGB; Percent clamps nothing and reports ≥100 in
// that case.
type UsageSample struct {
	ServerName string
	UsedGB     float64
	TotalGB    float64
}

// Percent returns the usage ratio as a percentage. A zero or negative total
// with non-zero usage counts as fully used; with zero usage it counts as 0.
func (s UsageSample) Percent() float64 {
	if s.TotalGB <= 0 {
		if s.UsedGB > 0 {
			return 100
		}

		return 0
	}

	return s.UsedGB / s.TotalGB * 100
}

// Command is one inbound operator command from the chat transport.
type Command struct {
	Name string
	Args string
	Chat int64
}
