package generator

import (
	"errors"
	"regexp"
	"strings"
)

const (
	springBootMainClass = "MySpringBootApplication"
	importResourceClass = "org.springframework.context.annotation.ImportResource"
)

var (
	// The first annotation or declaration of the main class.
	classStart  = regexp.MustCompile(`(?m)^(@\w+|(public\s+)?class\s)`)
	packageLine = regexp.MustCompile(`(?m)^package\s+[\w.]+;[ \t]*\n`)
)

// importResources annotates a main class with @ImportResource for the given
// classpath resources. A class that already imports resources is returned
// unchanged.
func importResources(source string, resources []string) (string, error) {
	if strings.Contains(source, "@ImportResource") {
		return source, nil
	}
	loc := classStart.FindStringIndex(source)
	if loc == nil {
		return "", errors.New("no class declaration found")
	}

	refs := make([]string, len(resources))
	for i, r := range resources {
		refs[i] = `"classpath:` + r + `"`
	}
	annotation := "@ImportResource({" + strings.Join(refs, ", ") + "})\n"
	source = source[:loc[0]] + annotation + source[loc[0]:]

	if strings.Contains(source, "import "+importResourceClass+";") {
		return source, nil
	}
	statement := "import " + importResourceClass + ";\n"
	if pkg := packageLine.FindStringIndex(source); pkg != nil {
		return source[:pkg[1]] + "\n" + statement + source[pkg[1]:], nil
	}
	return statement + "\n" + source, nil
}
