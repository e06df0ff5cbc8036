package environments

import "strings"

const (
	// DefaultRDSMarker identifies Amazon RDS hosts.
	DefaultRDSMarker = "rds.amazonaws.com"
)

// DefaultLocalMarkers identify loopback hosts.
var DefaultLocalMarkers = []string{"localhost", "127.0.0.1"}

// Classifier answers questions about a named environment. Unknown names are
// an error, never a default answer.
type Classifier interface {
	IsRDS(name string) (bool, error)
	IsLocal(name string) (bool, error)
}

// HostClassifier classifies environments by substring matches on the host.
type HostClassifier struct {
	Directory    *Directory
	RDSMarker    string
	LocalMarkers []string
}

// NewHostClassifier returns a classifier with the default markers.
func NewHostClassifier(dir *Directory) *HostClassifier {
	return &HostClassifier{
		Directory:    dir,
		RDSMarker:    DefaultRDSMarker,
		LocalMarkers: DefaultLocalMarkers,
	}
}

// IsRDS reports whether the environment's host contains the RDS marker.
func (c *HostClassifier) IsRDS(name string) (bool, error) {
	env, err := c.Directory.Get(name)
	if err != nil {
		return false, err
	}
	return c.HostIsRDS(env.Host), nil
}

// IsLocal reports whether the environment's host is a loopback host.
func (c *HostClassifier) IsLocal(name string) (bool, error) {
	env, err := c.Directory.Get(name)
	if err != nil {
		return false, err
	}
	return c.HostIsLocal(env.Host), nil
}

// HostIsRDS applies the RDS rule to a bare host.
func (c *HostClassifier) HostIsRDS(host string) bool {
	return c.RDSMarker != "" && strings.Contains(host, c.RDSMarker)
}

// HostIsLocal applies the loopback rule to a bare host.
func (c *HostClassifier) HostIsLocal(host string) bool {
	for _, marker := range c.LocalMarkers {
		if marker != "" && strings.Contains(host, marker) {
			return true
		}
	}
	return false
}

var _ Classifier = (*HostClassifier)(nil)
