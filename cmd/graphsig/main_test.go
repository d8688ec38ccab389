package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/graphsig/internal/testkeys"
)

const testGraph = `{
  "vertices": [
    {"id": "alice", "labels": ["admin"]},
    {"id": "bob", "labels": ["admin", "guest"]},
    {"id": "carol", "labels": ["public"]}
  ],
  "edges": [
    {"from": "alice", "to": "bob", "labels": ["internal"]}
  ]
}`

func run(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	dir := t.TempDir()
	sk, pk := testkeys.KeyPair()
	_, err := pk.WriteToFile(filepath.Join(dir, "ipk.xml"), true)
	require.NoError(t, err)
	_, err = sk.WriteToFile(filepath.Join(dir, "isk.xml"), true)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.json"), []byte(testGraph), 0644))
	return dir
}

func TestSessionFlow(t *testing.T) {
	dir := setup(t)
	path := func(name string) string { return filepath.Join(dir, name) }
	common := []string{"--public-key", path("ipk.xml"), "--alphabet", "admin,guest,internal,public", "--log-level", "warn"}

	_, err := run(append([]string{"issue",
		"--private-key", path("isk.xml"),
		"--graph", path("graph.json"),
		"--credential", path("credential.cbor")}, common...)...)
	require.NoError(t, err)

	_, err = run("verifier-key",
		"--verifier-key", path("verifier.pem"),
		"--verifier-public-key", path("verifier.pub.pem"))
	require.NoError(t, err)

	_, err = run(append([]string{"request",
		"--vertices", "0,2",
		"--coprime",
		"--verifier-key", path("verifier.pem"),
		"--request", path("request.cbor")}, common...)...)
	require.NoError(t, err)

	_, err = run(append([]string{"prove",
		"--credential", path("credential.cbor"),
		"--request", path("request.cbor"),
		"--verifier-public-key", path("verifier.pub.pem"),
		"--proof", path("proof.cbor")}, common...)...)
	require.NoError(t, err)

	out, err := run(append([]string{"verify",
		"--verifier-key", path("verifier.pem"),
		"--request", path("request.cbor"),
		"--proof", path("proof.cbor")}, common...)...)
	require.NoError(t, err)

	var result struct {
		Coprime     bool              `json:"coprime"`
		Commitments map[string]string `json:"commitments"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.True(t, result.Coprime)
	require.Len(t, result.Commitments, 2)
	require.Contains(t, result.Commitments, "0")
	require.Contains(t, result.Commitments, "2")

	// alice and bob share the admin label
	_, err = run(append([]string{"request",
		"--vertices", "0,1",
		"--coprime",
		"--verifier-key", path("verifier.pem"),
		"--request", path("shared.cbor")}, common...)...)
	require.NoError(t, err)
	_, err = run(append([]string{"prove",
		"--credential", path("credential.cbor"),
		"--request", path("shared.cbor"),
		"--verifier-public-key", path("verifier.pub.pem"),
		"--proof", path("shared-proof.cbor")}, common...)...)
	require.Error(t, err)
}

func TestEnvironmentConfig(t *testing.T) {
	dir := setup(t)
	t.Setenv("GRAPHSIG_PUBLIC_KEY", filepath.Join(dir, "ipk.xml"))
	t.Setenv("GRAPHSIG_PRIVATE_KEY", filepath.Join(dir, "isk.xml"))
	t.Setenv("GRAPHSIG_ALPHABET", "admin guest internal public")

	_, err := run("issue",
		"--graph", filepath.Join(dir, "graph.json"),
		"--credential", filepath.Join(dir, "credential.cbor"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "credential.cbor"))
	require.NoError(t, err)

	_, err = run("issue", "--graph", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := setup(t)
	config := "public-key: " + filepath.Join(dir, "ipk.xml") + "\n" +
		"private-key: " + filepath.Join(dir, "isk.xml") + "\n" +
		"alphabet: [admin, guest, internal, public]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphsig.yaml"), []byte(config), 0644))

	_, err := run("issue",
		"--config", filepath.Join(dir, "graphsig.yaml"),
		"--graph", filepath.Join(dir, "graph.json"),
		"--credential", filepath.Join(dir, "credential.cbor"))
	require.NoError(t, err)

	_, err = run("issue", "--config", filepath.Join(dir, "nonexistent.yaml"))
	require.Error(t, err)
}
