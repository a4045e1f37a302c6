package importer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"mapload/internal/deno"
)

// evalScript dynamic-imports the cache artifact and prints its
// JSON-serializable exports on a sentinel-prefixed line, mirroring the
// `>>>`/`>>!` stdout protocol of the dev loader.
const evalScript = `
const [url] = Deno.args;
try {
  const mod = await import(url);
  const exports = {};
  for (const [name, value] of Object.entries(mod)) {
    try {
      JSON.stringify(value);
      exports[name] = value;
    } catch {
      // functions and other non-serializable exports are omitted
    }
  }
  console.log(">>>" + JSON.stringify(exports));
} catch (err) {
  console.log(">>!" + JSON.stringify(String(err?.stack ?? err)));
}
`

// DenoLoader implements the host module-loading capability with a Deno
// subprocess: the runtime parses and executes the cache artifact and hands
// back its exported bindings. Deno discovery runs once; concurrent first
// callers share the same result.
type DenoLoader struct {
	once     sync.Once
	denoPath string
	initErr  error
}

func (l *DenoLoader) init() {
	l.denoPath, l.initErr = deno.LookupDeno()
}

// Load evaluates the module at the given absolute URL and returns its
// exported bindings.
func (l *DenoLoader) Load(moduleUrl string) (module Module, err error) {
	l.once.Do(l.init)
	if l.initErr != nil {
		err = l.initErr
		return
	}

	cmd := exec.Command(l.denoPath, "eval", "--quiet", "--no-lock", "--allow-all", evalScript, moduleUrl)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if runErr := cmd.Run(); runErr != nil {
		err = fmt.Errorf("deno: %v: %s", runErr, strings.TrimSpace(stderr.String()))
		return
	}

	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(nil, 8<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 3 && (bytes.HasPrefix(line, []byte(">>>")) || bytes.HasPrefix(line, []byte(">>!"))) {
			if line[2] == '!' {
				var message string
				if json.Unmarshal(line[3:], &message) != nil {
					message = string(line[3:])
				}
				err = errors.New(message)
				return
			}
			module = Module{}
			err = json.Unmarshal(line[3:], &module)
			return
		}
	}
	err = errors.New("deno: no module output")
	return
}
