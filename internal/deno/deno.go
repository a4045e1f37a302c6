package deno

import (
	"errors"
	"os/exec"
	"strings"
)

// minimum Deno version with stable `import.meta.resolve` and JSON module support
const minVersion = "1.40"

// LookupDeno locates a usable Deno executable on PATH.
func LookupDeno() (denoPath string, err error) {
	denoPath, err = exec.LookPath("deno")
	if err != nil {
		err = errors.New("deno not found, please install deno first")
		return
	}
	err = validateDenoPath(denoPath)
	return
}

func validateDenoPath(denoPath string) error {
	output, err := exec.Command(denoPath, "-v").Output()
	if err != nil {
		return errors.New("deno executable is not runnable: " + err.Error())
	}
	version := strings.TrimPrefix(strings.TrimSpace(string(output)), "deno ")
	if !versionAtLeast(version, minVersion) {
		return errors.New("deno " + version + " is too old, please upgrade to " + minVersion + "+")
	}
	return nil
}

func versionAtLeast(version string, min string) bool {
	va := strings.Split(version, ".")
	vb := strings.Split(min, ".")
	for i := range vb {
		if i >= len(va) {
			return false
		}
		a, b := atoi(va[i]), atoi(vb[i])
		if a != b {
			return a > b
		}
	}
	return true
}

func atoi(s string) (n int) {
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return
}
