package guard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownRoute = errors.New("guard: unknown route")

// Route is one entry of a RouteTable.
type Route struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Policy `yaml:",inline"`
}

func (r Route) Target() Target { return Target{Name: r.Name, Path: r.Path} }

// RouteTable declares routes, their policies and the guard's special
// destinations (named by route) in one YAML document:
//
//	mode: path
//	login: login
//	defaultPostLogin: home
//	forbidden: forbidden
//	routes:
//	  - {name: home, path: /}
//	  - {name: login, path: /login, waitForUser: true}
//	  - name: admin
//	    path: /admin
//	    authorize: {group: "/^admins?$/i"}
type RouteTable struct {
	// Mode is "state" or "path"; empty means path.
	Mode             string  `yaml:"mode"`
	Login            string  `yaml:"login"`
	DefaultPostLogin string  `yaml:"defaultPostLogin"`
	Forbidden        string  `yaml:"forbidden"`
	AutoRedirect     *bool   `yaml:"autoRedirect"`
	Routes           []Route `yaml:"routes"`
}

// LoadRouteTable parses a YAML route table.
func LoadRouteTable(r io.Reader) (*RouteTable, error) {
	var t RouteTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("guard: decode route table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadRouteTableFile reads and parses the route table at path.
func LoadRouteTableFile(path string) (*RouteTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("guard: open route table: %w", err)
	}
	defer f.Close()
	return LoadRouteTable(f)
}

func (t *RouteTable) validate() error {
	switch t.Mode {
	case "", "path", "state":
	default:
		return fmt.Errorf("guard: route table mode %q, want \"state\" or \"path\"", t.Mode)
	}

	seen := make(map[string]bool, len(t.Routes))
	for i, r := range t.Routes {
		if r.Name == "" && r.Path == "" {
			return fmt.Errorf("guard: route %d has neither name nor path", i)
		}
		for _, k := range []string{r.Name, r.Path} {
			if k == "" {
				continue
			}
			if seen[k] {
				return fmt.Errorf("guard: route %q declared twice", k)
			}
			seen[k] = true
		}
	}

	for _, ref := range []string{t.Login, t.DefaultPostLogin, t.Forbidden} {
		if ref == "" {
			continue
		}
		if _, ok := t.Lookup(ref); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRoute, ref)
		}
	}
	return nil
}

// PathMode reports whether the table is for a path router.
func (t *RouteTable) PathMode() bool { return t.Mode != "state" }

// Lookup finds a route by name or path. A path's query string is ignored.
func (t *RouteTable) Lookup(nameOrPath string) (Route, bool) {
	key, _, _ := strings.Cut(nameOrPath, "?")
	for _, r := range t.Routes {
		if (r.Name != "" && r.Name == key) || (r.Path != "" && r.Path == key) {
			return r, true
		}
	}
	return Route{}, false
}

// Transition builds the transition to a declared route.
func (t *RouteTable) Transition(nameOrPath string) (Transition, error) {
	r, ok := t.Lookup(nameOrPath)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownRoute, nameOrPath)
	}
	return Transition{To: r.Target(), Policy: r.Policy}, nil
}

// Config returns the guard configuration the table declares.
func (t *RouteTable) Config() Config {
	target := func(ref string) *Target {
		if ref == "" {
			return nil
		}
		r, ok := t.Lookup(ref)
		if !ok {
			return nil
		}
		tg := r.Target()
		return &tg
	}
	return Config{
		AutoRedirect:     t.AutoRedirect,
		DefaultPostLogin: target(t.DefaultPostLogin),
		Forbidden:        target(t.Forbidden),
		Login:            target(t.Login),
	}
}

// Enable builds the guard matching the table's mode.
func (t *RouteTable) Enable(deps Deps) *Guard {
	if t.PathMode() {
		return EnablePathRouter(deps, t.Config())
	}
	return EnableStateRouter(deps, t.Config())
}
