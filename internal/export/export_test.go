// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/changepack/internal/archive"
	"github.com/jeranaias/changepack/internal/git"
	"github.com/jeranaias/changepack/internal/manifest"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeRepo struct {
	staged, modified, untracked []string
	err                         error
	branch, hash, user          string
}

func (f *fakeRepo) Changes(context.Context) ([]string, []string, []string, error) {
	return f.staged, f.modified, f.untracked, f.err
}

func (f *fakeRepo) Branch(context.Context) (string, bool)    { return f.branch, f.branch != "" }
func (f *fakeRepo) ShortHash(context.Context) (string, bool) { return f.hash, f.hash != "" }
func (f *fakeRepo) UserName(context.Context) (string, bool)  { return f.user, f.user != "" }

type progressStep struct {
	inc int
	msg string
}

type recordingProgress struct {
	steps []progressStep
}

func (p *recordingProgress) Report(inc int, msg string) {
	p.steps = append(p.steps, progressStep{inc, msg})
}

func (p *recordingProgress) total() int {
	n := 0
	for _, s := range p.steps {
		n += s.inc
	}
	return n
}

func (p *recordingProgress) messages() []string {
	var out []string
	for _, s := range p.steps {
		out = append(out, s.msg)
	}
	return out
}

type recordingNotifier struct {
	outcomes []Outcome
}

func (n *recordingNotifier) Notify(o Outcome) {
	n.outcomes = append(n.outcomes, o)
}

// =============================================================================
// HELPERS
// =============================================================================

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

func newRepoDir(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo")
	require.NoError(t, os.MkdirAll(root, 0755))
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(data), 0644))
	}
	return root
}

func newTestRunner(repo Repository) (*Runner, *recordingProgress, *recordingNotifier) {
	p := &recordingProgress{}
	n := &recordingNotifier{}
	r := NewRunner(repo, Options{
		Progress: p,
		Notifier: n,
		Now:      func() time.Time { return fixedNow },
		NewRunID: func() string { return "run-1" },
	})
	return r, p, n
}

// privateTempDir points os.TempDir at a fresh directory for this test.
func privateTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	t.Setenv("TMP", dir)
	t.Setenv("TEMP", dir)
	return dir
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_DirectoryWithManifest(t *testing.T) {
	root := newRepoDir(t, map[string]string{
		"a.txt":     "alpha",
		"b.txt":     "bravo",
		"sub/c.txt": "charlie",
	})
	repo := &fakeRepo{
		staged:    []string{"a.txt"},
		modified:  []string{"b.txt"},
		untracked: []string{"a.txt", "sub/c.txt"},
		branch:    "main",
		hash:      "abc1234",
		user:      "Dev",
	}
	r, progress, notifier := newTestRunner(repo)
	dest := filepath.Join(t.TempDir(), "out", "demo")
	tmp := privateTempDir(t)

	out, err := r.Run(context.Background(), Request{
		RepoRoot:        root,
		Destination:     dest,
		Kind:            archive.KindDirectory,
		IncludeManifest: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "demo", out.Project)
	assert.Equal(t, "demo-main-20240101-120000", out.Name)
	assert.Equal(t, dest, out.Destination)
	assert.Equal(t, 3, out.Files)
	assert.Equal(t, 3, out.Copied)
	assert.True(t, out.Manifest)
	assert.Equal(t, "Successfully exported demo changes to: "+dest, out.Message)

	for rel, want := range map[string]string{"a.txt": "alpha", "b.txt": "bravo", "sub/c.txt": "charlie"} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	m, err := manifest.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, "demo-main-20240101-120000", m.Name)
	assert.Equal(t, "demo", m.ProjectName)
	require.NotNil(t, m.Branch)
	assert.Equal(t, "main", *m.Branch)
	require.NotNil(t, m.CommitHash)
	assert.Equal(t, "abc1234", *m.CommitHash)
	assert.Equal(t, 3, m.TotalFiles)
	assert.Equal(t, 1, m.StagedFiles)
	assert.Equal(t, 1, m.ModifiedFiles)
	assert.Equal(t, 2, m.UntrackedFiles)
	require.Len(t, m.Files, 3)
	assert.Equal(t, "a.txt", m.Files[0].Path)
	assert.True(t, manifest.Verify(dest, m).OK())

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, StatusSuccess, notifier.outcomes[0].Status)

	assert.Equal(t, 100, progress.total())
	msgs := progress.messages()
	assert.Equal(t, MsgQuery, msgs[0])
	assert.Equal(t, "Found 3 changed files", msgs[1])
	assert.Equal(t, MsgFolders, msgs[2])
	assert.Contains(t, msgs, "Copying files... (3/3)")
	assert.Contains(t, msgs, MsgManifest)
	assert.Equal(t, MsgDone, msgs[len(msgs)-1])

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left, "staging directory removed")
}

func TestRun_ZipWithoutManifest(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "alpha"})
	r, _, _ := newTestRunner(&fakeRepo{modified: []string{"a.txt"}, branch: "feature/x"})
	dest := filepath.Join(t.TempDir(), "demo")

	out, err := r.Run(context.Background(), Request{
		RepoRoot:    root,
		Destination: dest,
		Kind:        archive.KindZip,
		Template:    "{project}_{branch}",
	})
	require.NoError(t, err)

	assert.Equal(t, dest+".zip", out.Destination)
	assert.Equal(t, "demo_feature-x", out.Name)
	assert.False(t, out.Manifest)

	zr, err := zip.OpenReader(out.Destination)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "demo_feature-x/a.txt")
	for _, n := range names {
		assert.False(t, strings.HasSuffix(n, manifest.FileName), "no manifest expected: %s", n)
	}
}

func TestRun_EmptyChangeSet(t *testing.T) {
	root := newRepoDir(t, nil)
	r, progress, notifier := newTestRunner(&fakeRepo{})
	dest := filepath.Join(t.TempDir(), "out")

	out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest})
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Equal(t, StatusWarning, out.Status)
	assert.Equal(t, "No changed files found", out.Message)
	assert.NoDirExists(t, dest)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, StatusWarning, notifier.outcomes[0].Status)
	assert.Equal(t, []string{MsgQuery}, progress.messages())
}

func TestRun_QueryErrorIsFatal(t *testing.T) {
	root := newRepoDir(t, nil)
	qerr := &git.QueryError{Query: git.QueryStaged, Err: errors.New("boom")}
	r, _, notifier := newTestRunner(&fakeRepo{err: qerr})
	dest := filepath.Join(t.TempDir(), "out")

	out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest})
	require.Error(t, err)
	assert.True(t, git.IsQueryError(err))
	assert.Equal(t, StatusError, out.Status)
	assert.True(t, strings.HasPrefix(out.Message, "Failed to export changed files: "))
	assert.NoDirExists(t, dest)
	assert.Len(t, notifier.outcomes, 1)
}

func TestRun_EnvironmentErrors(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "a"})
	notDir := filepath.Join(root, "a.txt")

	tests := []struct {
		name string
		req  Request
	}{
		{"missing root", Request{RepoRoot: filepath.Join(root, "nope"), Destination: t.TempDir()}},
		{"empty root", Request{Destination: t.TempDir()}},
		{"root is a file", Request{RepoRoot: notDir, Destination: t.TempDir()}},
		{"no destination", Request{RepoRoot: root}},
		{"bad kind", Request{RepoRoot: root, Destination: t.TempDir(), Kind: "rar"}},
		{"destination is repo", Request{RepoRoot: root, Destination: root}},
		{"destination contains repo", Request{RepoRoot: root, Destination: filepath.Dir(root)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{staged: []string{"a.txt"}}
			r, progress, notifier := newTestRunner(repo)

			out, err := r.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsEnvironmentError(err), "got %T: %v", err, err)
			assert.Equal(t, StatusError, out.Status)
			assert.Empty(t, progress.steps, "nothing started")
			assert.Len(t, notifier.outcomes, 1)
		})
	}

	assert.FileExists(t, notDir, "repository untouched")
}

func TestRun_ArchiveBesideRepository(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "a"})
	r, _, _ := newTestRunner(&fakeRepo{untracked: []string{"a.txt"}})

	out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: filepath.Dir(root), Kind: archive.KindTarGz})
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(root)+".tar.gz", out.Destination)
	assert.FileExists(t, out.Destination)
	assert.FileExists(t, filepath.Join(root, "a.txt"))
}

func TestRun_ArchiveIntoFolder(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "a"})
	r, _, _ := newTestRunner(&fakeRepo{untracked: []string{"a.txt"}, branch: "main"})
	folder := t.TempDir()

	out, err := r.Run(context.Background(), Request{
		RepoRoot:    root,
		Destination: folder + string(filepath.Separator),
		Kind:        archive.KindZip,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "demo-main-20240101-120000.zip"), out.Destination)
	assert.FileExists(t, out.Destination)
	assert.NoFileExists(t, filepath.Join(folder, ".zip"))
}

func TestRun_PartialFailuresStillSucceed(t *testing.T) {
	root := newRepoDir(t, map[string]string{"ok.txt": "ok"})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0755))
	repo := &fakeRepo{
		staged:   []string{"ok.txt", "deleted.txt", "dir"},
		modified: []string{"../escape.txt"},
	}
	r, _, notifier := newTestRunner(repo)
	dest := filepath.Join(t.TempDir(), "out")

	out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest, IncludeManifest: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 4, out.Files)
	assert.Equal(t, 1, out.Copied)
	assert.Equal(t, 2, out.Omitted)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "../escape.txt", out.Failed[0].Path)
	assert.Contains(t, out.Message, "(1 file(s) could not be copied)")

	m, err := manifest.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, 4, m.TotalFiles)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "ok.txt", m.Files[0].Path)

	assert.Len(t, notifier.outcomes, 1)
}

func TestRun_ManifestNameCollision(t *testing.T) {
	nested := "sub/" + manifest.FileName
	root := newRepoDir(t, map[string]string{
		"a.txt":           "alpha",
		manifest.FileName: "USER DATA",
		nested:            "nested is fine",
	})
	repo := &fakeRepo{untracked: []string{"a.txt", manifest.FileName, nested}}

	t.Run("with manifest", func(t *testing.T) {
		r, _, notifier := newTestRunner(repo)
		dest := filepath.Join(t.TempDir(), "out")

		out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest, IncludeManifest: true})
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, 3, out.Files)
		assert.Equal(t, 2, out.Copied)
		require.Len(t, out.Failed, 1)
		assert.Equal(t, manifest.FileName, out.Failed[0].Path)
		assert.Contains(t, out.Failed[0].Reason, "reserved")
		assert.Contains(t, out.Message, "(1 file(s) could not be copied)")
		require.Len(t, notifier.outcomes, 1)

		m, err := manifest.Read(dest)
		require.NoError(t, err)
		var paths []string
		for _, f := range m.Files {
			paths = append(paths, f.Path)
		}
		assert.ElementsMatch(t, []string{"a.txt", nested}, paths)
		assert.True(t, manifest.Verify(dest, m).OK(), "export matches its own manifest")

		src, err := os.ReadFile(filepath.Join(root, manifest.FileName))
		require.NoError(t, err)
		assert.Equal(t, "USER DATA", string(src), "repository file untouched")
	})

	t.Run("without manifest", func(t *testing.T) {
		r, _, _ := newTestRunner(repo)
		dest := filepath.Join(t.TempDir(), "out")

		out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Copied)
		assert.Empty(t, out.Failed)

		got, err := os.ReadFile(filepath.Join(dest, manifest.FileName))
		require.NoError(t, err)
		assert.Equal(t, "USER DATA", string(got))
	})
}

func TestRun_CommitFailureCleansUp(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "alpha"})
	r, _, notifier := newTestRunner(&fakeRepo{staged: []string{"a.txt"}})

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))
	dest := filepath.Join(blocker, "out", "demo")
	tmp := privateTempDir(t)

	out, err := r.Run(context.Background(), Request{
		RepoRoot:        root,
		Destination:     dest,
		Kind:            archive.KindZip,
		IncludeManifest: true,
	})
	require.Error(t, err)

	var commitErr *archive.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, "Failed to export changed files: "+commitErr.Error(), out.Message)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, StatusError, notifier.outcomes[0].Status)
	assert.Equal(t, out.Message, notifier.outcomes[0].Message)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left, "staging directory removed after a failed commit")
	assert.NoFileExists(t, dest+".zip")
}

func TestRun_UnavailableProvenanceIsNull(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "a"})
	r, _, _ := newTestRunner(&fakeRepo{staged: []string{"a.txt"}})
	dest := filepath.Join(t.TempDir(), "out")

	out, err := r.Run(context.Background(), Request{
		RepoRoot:        root,
		ProjectName:     "custom",
		Destination:     dest,
		Template:        "{project}-{branch}-{hash}",
		IncludeManifest: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom--", out.Name)

	raw, err := os.ReadFile(filepath.Join(dest, manifest.FileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Nil(t, doc["branch"])
	assert.Nil(t, doc["commitHash"])
	assert.Nil(t, doc["user"])
	assert.Equal(t, "custom", doc["projectName"])
}

func TestRun_CancelledBeforeCommit(t *testing.T) {
	root := newRepoDir(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	p := &cancelOnCopy{cancel: cancel}
	r := NewRunner(&fakeRepo{staged: []string{"a.txt"}}, Options{Progress: p})
	dest := filepath.Join(t.TempDir(), "out")

	out, err := r.Run(ctx, Request{RepoRoot: root, Destination: dest})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusError, out.Status)
	assert.NoDirExists(t, dest)
}

type cancelOnCopy struct {
	cancel context.CancelFunc
}

func (c *cancelOnCopy) Report(_ int, msg string) {
	if strings.HasPrefix(msg, "Copying files") {
		c.cancel()
	}
}

func TestTracker(t *testing.T) {
	p := &recordingProgress{}
	tr := &tracker{sink: p}

	tr.advance(pctQuery, MsgQuery)
	tr.advance(pctFound, MsgFound(2))
	tr.advance(pctFolders, MsgFolders)
	tr.copying(1, 2)
	tr.copying(2, 2)
	tr.advance(pctFound, "backwards")
	tr.advance(250, MsgDone)

	incs := make([]int, len(p.steps))
	for i, s := range p.steps {
		incs[i] = s.inc
	}
	assert.Equal(t, []int{5, 15, 20, 22, 23, 0, 15}, incs)
	assert.Equal(t, 100, p.total())
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	base := filepath.Join(sep+"x", "repo")

	assert.True(t, within(base, base))
	assert.True(t, within(filepath.Dir(base), base))
	assert.True(t, within(base, filepath.Join(base, "..hidden")))
	assert.False(t, within(filepath.Join(base, "out"), base))
	assert.False(t, within(filepath.Join(sep+"x", "other"), base))
}

// =============================================================================
// END TO END
// =============================================================================

func TestRun_RealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	root := filepath.Join(t.TempDir(), "demo")
	require.NoError(t, os.MkdirAll(root, 0755))
	gitCmd := func(args ...string) {
		t.Helper()
		full := append([]string{"-C", root, "-c", "user.name=Test", "-c", "user.email=t@example.com", "-c", "commit.gpgsign=false"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	write := func(rel, data string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(data), 0644))
	}

	gitCmd("init", "-q", "-b", "main")
	write("tracked.txt", "v1")
	write(".gitignore", "ignored.log\n")
	gitCmd("add", ".")
	gitCmd("commit", "-q", "-m", "init")

	write("tracked.txt", "v2")
	write("staged/new.go", "package staged\n")
	gitCmd("add", "staged/new.go")
	write("loose.md", "# hi")
	write("ignored.log", "noise")

	r, _, _ := newTestRunner(git.NewRepository(root))
	dest := filepath.Join(t.TempDir(), "export")

	out, err := r.Run(context.Background(), Request{RepoRoot: root, Destination: dest, IncludeManifest: true})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Files)
	assert.True(t, strings.HasPrefix(out.Name, "demo-main-"))

	assert.FileExists(t, filepath.Join(dest, "tracked.txt"))
	assert.FileExists(t, filepath.Join(dest, "staged", "new.go"))
	assert.FileExists(t, filepath.Join(dest, "loose.md"))
	assert.NoFileExists(t, filepath.Join(dest, "ignored.log"))

	m, err := manifest.Read(dest)
	require.NoError(t, err)
	require.NotNil(t, m.CommitHash)
	assert.NotEmpty(t, *m.CommitHash)
	assert.True(t, manifest.Verify(dest, m).OK())
}
