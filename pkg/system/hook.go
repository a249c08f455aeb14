// pkg/system/hook.go
package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/platform"
)

// runHook executes post_install.py from pkg as "interpreter script basedir"
// with the basedir as working directory and a minimal environment. The
// script runs top to bottom and nothing calls into it afterwards: a script
// that only defines main(basedir) does nothing unless it calls main itself,
// for example from an `if __name__ == "__main__"` block reading sys.argv[1].
func (m *Manager) runHook(ctx context.Context, pkg *asp.Package, aspName string) error {
	script, err := pkg.ReadMember(asp.MemberPostInstall)
	if err != nil {
		return fmt.Errorf("%w: reading script: %v", core.ErrPostInstallFailed, err)
	}

	interp, err := platform.ResolveInterpreter(m.config.HookInterpreter)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPostInstallFailed, err)
	}
	m.logger.Printf("  Using interpreter: %s", interp)

	f, err := os.CreateTemp("", "aspkg-post-install-*.py")
	if err != nil {
		return fmt.Errorf("%w: staging script: %v", core.ErrPostInstallFailed, err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(script); err != nil {
		f.Close()
		return fmt.Errorf("%w: staging script: %v", core.ErrPostInstallFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: staging script: %v", core.ErrPostInstallFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.HookTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, interp, f.Name(), m.basedir)
	cmd.Dir = m.basedir
	cmd.Env = []string{
		"PATH=" + hookPath,
		"ASPKG_BASEDIR=" + m.basedir,
		"ASPKG_ASP=" + aspName,
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err = cmd.Run()
	if out := strings.TrimSpace(output.String()); out != "" {
		for _, line := range strings.Split(out, "\n") {
			m.logger.Printf("    | %s", line)
		}
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: timed out after %v", core.ErrPostInstallFailed, m.config.HookTimeout)
		}
		return fmt.Errorf("%w: %v", core.ErrPostInstallFailed, err)
	}
	return nil
}
