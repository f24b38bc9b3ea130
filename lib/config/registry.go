package config

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/lib/database"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Credential Entry
// --------------------------------------------------------------------------

// Credential holds the connection details of one backend family.
type Credential struct {
	Host     string
	Port     int
	Username string
	Password string
}

// HasAuth reports whether credentials should be embedded in a connection string.
// Only when both username and password are empty the connection is unauthenticated.
func (c Credential) HasAuth() bool {
	return c.Username != "" || c.Password != ""
}

// Addr returns host:port
func (c Credential) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps a backend type to its credentials.
// At most one entry exists per backend type, the last Configure call wins.
//
// The registry is populated once at startup and then handed to the facade constructors.
// Concurrent reconfiguration while facades are being built is not supported.
type Registry struct {
	mu      sync.RWMutex
	entries map[database.BackendType]Credential
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[database.BackendType]Credential),
	}
}

// Configure registers or overwrites the credentials for a backend type.
// It fails with a ConfigurationError if the backend type is empty or the port is negative.
func (r *Registry) Configure(backend database.BackendType, host string, port int, username, password string) error {
	if backend == "" {
		return database.NewError(database.CodeConfiguration, "backend type must not be empty")
	}
	if port < 0 {
		return database.Errorf(database.CodeConfiguration, "invalid port %d for %s", port, backend)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[backend] = Credential{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}

	Logger.Debugf("configured credentials for %s (%s:%d)", backend, host, port)
	return nil
}

// Resolve returns the credentials for a backend type.
// It fails with a NotConfiguredError if the backend type was never configured.
func (r *Registry) Resolve(backend database.BackendType) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.entries[backend]
	if !ok {
		return Credential{}, database.Errorf(database.CodeNotConfigured, "no credentials configured for %s", backend)
	}
	return cred, nil
}

// Types returns all configured backend types in sorted order
func (r *Registry) Types() []database.BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]database.BackendType, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// String returns a formatted string representation of the registry.
// Passwords are masked.
func (r *Registry) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	types := r.Types()
	if len(types) == 0 {
		addSection("Credentials")
		addField("Configured", "none")
		return sb.String()
	}

	for _, t := range types {
		cred, _ := r.Resolve(t)
		addSection(string(t))
		addField("Host", cred.Host)
		addField("Port", strconv.Itoa(cred.Port))
		addField("Username", cred.Username)
		if cred.Password != "" {
			addField("Password", "********")
		} else {
			addField("Password", "")
		}
	}
	return sb.String()
}
