package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zsdb"
	"github.com/meigma/zsdb/core/testutil"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func sampleFiles() map[string][]byte {
	files := map[string][]byte{
		"map001.bin": bytes.Repeat([]byte("tile"), 300),
		"readme.txt": []byte("hello"),
	}
	for i := range 24 {
		files[fmt.Sprintf("npc%02d.json", i)] = fmt.Appendf(nil,
			`{"id":%d,"name":"villager-%02d","dialog":["hello","goodbye"],"hp":%d,"tag":"%x"}`,
			i, i, 10+i, testutil.RandomBytes(uint64(i)+1, 8))
	}
	return files
}

func buildSample(t *testing.T) (archive string, files map[string][]byte) {
	t.Helper()
	files = sampleFiles()
	src := testutil.WriteFiles(t, files)
	archive = filepath.Join(t.TempDir(), "data.zsdb")
	code, stdout, stderr := runCLI(t, "build", "-o", archive, src)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "26 files")
	return archive, files
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Commands:")

	code, _, stderr = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, _ = runCLI(t, "--log-level", "loud", "list", "x")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "--help")
	assert.Equal(t, 0, code)

	code, _, stderr = runCLI(t, "get", "only-archive")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: zsdb get")
}

func TestRunBuildAndList(t *testing.T) {
	t.Parallel()

	archive, files := buildSample(t)

	code, stdout, stderr := runCLI(t, "list", archive)
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, len(files)+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "map001.bin"))

	code, stdout, stderr = runCLI(t, "list", "--json", archive)
	require.Equal(t, 0, code, stderr)
	var names []string
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		var e listEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		names = append(names, e.Name)
		assert.Contains(t, []string{"raw", "zstd"}, e.Storage)
	}
	assert.Len(t, names, len(files))
	assert.Equal(t, "map001.bin", names[0])
	assert.Equal(t, "readme.txt", names[len(names)-1])
}

func TestRunBuildWithConfig(t *testing.T) {
	t.Parallel()

	src := testutil.WriteFiles(t, sampleFiles())
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "build.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"output: out.zsdb\nsource: %s\npattern: 'npc.*'\n", src)), 0o644))

	code, _, stderr := runCLI(t, "build", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)

	r, err := zsdb.Open(filepath.Join(dir, "out.zsdb"))
	require.NoError(t, err)
	assert.Equal(t, 24, r.Len())
	require.NoError(t, r.Close())

	// A flag overrides the file.
	code, _, stderr = runCLI(t, "build", "--config", cfgPath, "--pattern", `.*\.txt`)
	require.Equal(t, 0, code, stderr)
	r, err = zsdb.Open(filepath.Join(dir, "out.zsdb"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	require.NoError(t, r.Close())

	code, _, _ = runCLI(t, "build", src)
	assert.Equal(t, 2, code)
}

func TestRunGet(t *testing.T) {
	t.Parallel()

	archive, files := buildSample(t)

	code, stdout, stderr := runCLI(t, "get", archive, "readme.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "hello", stdout)

	out := filepath.Join(t.TempDir(), "npc.json")
	code, _, stderr = runCLI(t, "get", "--prefix", "5", "-o", out, archive, "npc07.json")
	require.Equal(t, 0, code, stderr)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, files["npc07.json"], got)

	code, _, stderr = runCLI(t, "get", archive, "missing.bin")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestRunExtract(t *testing.T) {
	t.Parallel()

	archive, files := buildSample(t)
	dest := t.TempDir()

	code, stdout, stderr := runCLI(t, "extract", "--workers", "2", archive, dest, "readme.txt", "map001.bin")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "extracted 2 files")

	code, stdout, stderr = runCLI(t, "extract", archive, dest)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "2 existing skipped")

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestRunTrainAndBuildWithDictionary(t *testing.T) {
	t.Parallel()

	files := sampleFiles()
	src := testutil.WriteFiles(t, files)
	dict := filepath.Join(t.TempDir(), "npc.dict")

	code, stdout, stderr := runCLI(t, "train", "-o", dict, "--pattern", `npc.*\.json`, src)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "from 24 samples")

	archive := filepath.Join(t.TempDir(), "dict.zsdb")
	code, _, stderr = runCLI(t, "build", "-o", archive, "--dict", dict, src)
	require.Equal(t, 0, code, stderr)

	r, err := zsdb.Open(archive)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.HasDictionary())
	got, ok := r.Lookup("npc03.json")
	require.True(t, ok)
	assert.Equal(t, files["npc03.json"], got)

	code, _, _ = runCLI(t, "train", src)
	assert.Equal(t, 2, code)

	same := testutil.WriteFiles(t, map[string][]byte{
		"a.json": files["npc01.json"],
		"b.json": files["npc01.json"],
		"c.json": files["npc01.json"],
	})
	code, _, stderr = runCLI(t, "train", "-o", filepath.Join(t.TempDir(), "same.dict"), same)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "dictionary")
}

func TestRunInspect(t *testing.T) {
	t.Parallel()

	archive, _ := buildSample(t)

	code, stdout, stderr := runCLI(t, "inspect", archive)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "entries:")
	assert.Contains(t, stdout, "26 (")
	assert.Contains(t, stdout, "digest:")
	assert.Contains(t, stdout, "sha256:")
	assert.Contains(t, stdout, "dictionary:")
	assert.Contains(t, stdout, "absent")

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.ServeContent(w, r, "data.zsdb", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	code, stdout, stderr = runCLI(t, "inspect", "--header", "Authorization=Bearer token", server.URL+"/data.zsdb")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "26 (")
	assert.NotContains(t, stdout, "digest:")

	cacheDir := filepath.Join(t.TempDir(), "blocks")
	for range 2 {
		code, stdout, stderr = runCLI(t, "inspect", "--cache-dir", cacheDir,
			"--header", "Authorization=Bearer token", server.URL+"/data.zsdb")
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "26 (")
	}
	blocks, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, blocks)

	code, _, _ = runCLI(t, "inspect", server.URL+"/data.zsdb")
	assert.Equal(t, 1, code)

	code, _, _ = runCLI(t, "inspect", "--header", "novalue", archive)
	assert.Equal(t, 2, code)
}
