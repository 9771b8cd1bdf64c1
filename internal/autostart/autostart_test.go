package autostart

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "/usr/bin/batchwatch watch", commandLine("/usr/bin/batchwatch", []string{"watch"}))
	assert.Equal(t, `"/opt/my tools/batchwatch" watch --config "/home/me/my cfg.yaml"`,
		commandLine("/opt/my tools/batchwatch", []string{"watch", "--config", "/home/me/my cfg.yaml"}))
}

func TestWriteUnit(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeUnit(&sb, "/usr/bin/batchwatch", []string{"watch"}))

	unit := sb.String()
	assert.Contains(t, unit, "[Service]\nExecStart=/usr/bin/batchwatch watch\n")
	assert.Contains(t, unit, "WantedBy=default.target")
}

type fakeStarter struct {
	installed bool
	installs  int
	removals  int
	checkErr  error
}

func (f *fakeStarter) Install(string, []string) error {
	f.installs++
	f.installed = true
	return nil
}

func (f *fakeStarter) Uninstall() error {
	f.removals++
	f.installed = false
	return nil
}

func (f *fakeStarter) IsInstalled() (bool, error) {
	return f.installed, f.checkErr
}

func TestRegister(t *testing.T) {
	as := &fakeStarter{}
	require.NoError(t, Register(as, "/usr/bin/batchwatch", []string{"watch"}, false))
	assert.Equal(t, 1, as.installs)

	assert.ErrorIs(t, Register(as, "/usr/bin/batchwatch", []string{"watch"}, false), ErrAlreadyInstalled)
	assert.Equal(t, 1, as.installs)

	require.NoError(t, Register(as, "/usr/bin/batchwatch", []string{"watch"}, true))
	assert.Equal(t, 2, as.installs)
}

func TestRegisterCheckFails(t *testing.T) {
	as := &fakeStarter{checkErr: errors.New("schtasks missing")}
	assert.Error(t, Register(as, "/usr/bin/batchwatch", nil, false))
	assert.Equal(t, 0, as.installs)
}

func TestUnregister(t *testing.T) {
	as := &fakeStarter{}
	assert.ErrorIs(t, Unregister(as), ErrNotInstalled)
	assert.Equal(t, 0, as.removals)

	as.installed = true
	require.NoError(t, Unregister(as))
	assert.Equal(t, 1, as.removals)
	assert.False(t, as.installed)
}
