package build

import (
	"context"
	"io"
	"strings"
)

// Maven invokes the Maven command line.
type Maven struct {
	// Command is the executable, "mvn" when empty.
	Command string
	// BatchMode adds -B.
	BatchMode bool
	// Properties are added to every invocation; request properties win.
	Properties map[string]string
	// Console receives a live copy of the output. May be nil.
	Console io.Writer
}

// Args assembles the command line for req.
func (m *Maven) Args(req Request) []string {
	var args []string
	if m.BatchMode {
		args = append(args, "-B")
	}
	args = append(args, req.Goals...)
	if len(req.Profiles) > 0 {
		args = append(args, "-P"+strings.Join(req.Profiles, ","))
	}

	props := make(map[string]string, len(m.Properties)+len(req.Properties))
	for k, v := range m.Properties {
		props[k] = v
	}
	for k, v := range req.Properties {
		props[k] = v
	}
	for _, p := range SortedProperties(props) {
		args = append(args, "-D"+p)
	}
	return append(args, req.Args...)
}

// Invoke runs the request and waits for Maven to exit.
func (m *Maven) Invoke(ctx context.Context, req Request) (Result, error) {
	command := m.Command
	if command == "" {
		command = "mvn"
	}
	return runLogged(ctx, command, m.Args(req), req, m.Console)
}

// Script invokes an external generator script. Goals are its subcommand,
// properties are not used.
type Script struct {
	Command string
	Console io.Writer
}

// Invoke runs the script with the request's goals followed by its args.
func (s *Script) Invoke(ctx context.Context, req Request) (Result, error) {
	args := append(append([]string{}, req.Goals...), req.Args...)
	return runLogged(ctx, s.Command, args, req, s.Console)
}
