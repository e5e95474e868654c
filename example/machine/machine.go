// Package machine simulates the control process of a winding machine for
// demos and manual testing. It answers the console's remote protocol:
// form-posted expressions in, a ResultData document of JSON values out.
//
// Expressions are deliberately simple:
//
//	Name          read a value
//	Name.get()    read a value
//	Name.set(v)   write a value (v is JSON, or a bare string)
package machine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/etymology/winderconsole/internal/poll"
)

// DefaultSalt is the login salt handed out by a new [Machine].
const DefaultSalt = "winder"

var setPattern = regexp.MustCompile(`^([\w.]+)\.set\((.*)\)$`)

// Machine is a simulated control process. It is safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	values   map[string]any
	password string
	salt     string
	authed   bool
	started  time.Time
	logger   *slog.Logger
}

// New creates a machine with its initial state. password protects login.
func New(password string, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		values: map[string]any{
			"Axis.x.position": 0.0,
			"Axis.status":     map[string]any{"homed": true, "fault": false},
			"Spindle":         false,
			"Speed":           40.0,
			"Tension":         2.5,
			"Motor.state":     "idle",
			"Head.A.temp":     180.0,
			"Head.B.temp":     185.0,
			"Version":         "3.1",
		},
		password: password,
		salt:     DefaultSalt,
		started:  time.Now(),
		logger:   logger,
	}
}

// Eval evaluates one expression and returns its JSON encoding.
func (m *Machine) Eval(expr string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()

	expr = strings.TrimSpace(expr)
	if sub := setPattern.FindStringSubmatch(expr); sub != nil {
		name := sub[1]
		if _, ok := m.values[name]; !ok {
			return "", fmt.Errorf("unknown value %q", name)
		}
		m.values[name] = parseArg(sub[2])
		m.logger.Info("value set", "name", name, "value", m.values[name])
		return "true", nil
	}

	name := strings.TrimSuffix(expr, ".get()")
	v, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("unknown value %q", name)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// advance moves the axis while the spindle runs.
func (m *Machine) advance() {
	speed, _ := m.values["Speed"].(float64)
	if poll.Truthy(m.values["Spindle"]) {
		m.values["Motor.state"] = "running"
		elapsed := time.Since(m.started).Seconds()
		m.values["Axis.x.position"] = math.Round(speed*elapsed*100) / 100
	} else {
		m.values["Motor.state"] = "idle"
	}
}

// parseArg reads a set argument as JSON, treating anything else as a string.
func parseArg(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

// ServeHTTP implements the remote protocol. Unknown expressions are left out
// of the response.
func (m *Machine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.HasSuffix(r.URL.Path, "/login") {
		m.login(w, r)
		return
	}

	fields := map[string]string{}
	var order []string
	for id := range r.PostForm {
		v, err := m.Eval(r.PostForm.Get(id))
		if err != nil {
			m.logger.Debug("expression failed", "id", id, "error", err.Error())
			continue
		}
		fields[id] = v
		order = append(order, id)
	}
	if err := poll.EncodeResultData(w, fields, order); err != nil {
		m.logger.Error("failed to write response", "error", err)
	}
}

func (m *Machine) login(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fields map[string]string
	var order []string
	if r.PostForm.Has(poll.PasswordHashField) {
		m.authed = r.PostForm.Get(poll.PasswordHashField) == poll.HashPassword(m.salt, m.password)
		fields = map[string]string{poll.LoginResultField: fmt.Sprint(m.authed)}
		order = []string{poll.LoginResultField}
	} else {
		salt, _ := json.Marshal(m.salt)
		fields = map[string]string{
			poll.IsAuthenticatedField: fmt.Sprint(m.authed),
			poll.SaltField:            string(salt),
		}
		order = []string{poll.IsAuthenticatedField, poll.SaltField}
	}
	if err := poll.EncodeResultData(w, fields, order); err != nil {
		m.logger.Error("failed to write response", "error", err)
	}
}
