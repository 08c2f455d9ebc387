package retrieve

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainfile/internal/chunkstore"
	"github.com/roach88/chainfile/internal/descriptor"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/store"
	"github.com/roach88/chainfile/internal/testutil"
)

const (
	hashHelloWorld = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	hashHello      = "5e3235a8346e5a4585f8c58562f5052b8fe26a3bb122e1e96c76784964dfc461"
	hashWorld      = "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7"
)

// published is a file laid out on a fake chain.
type published struct {
	root       model.Identifier
	sources    []model.Identifier
	descriptor *model.FileDescriptor
}

// publish splits data into chunks of size n, publishes each on its own
// chain, then publishes the descriptor as the spend of a fresh root.
func publish(t *testing.T, chain *testutil.FakeChain, filename string, data []byte, n int) published {
	t.Helper()
	d := &model.FileDescriptor{Filename: filename, Hash: model.ContentHash(data), MediaType: "application/octet-stream"}
	var p published
	for off := 0; off < len(data); off += n {
		end := min(off+n, len(data))
		chunk := data[off:end]
		id := chain.Publish(chunk)[0]
		p.sources = append(p.sources, id)
		d.HashChunks = append(d.HashChunks, model.ChunkRef{Hash: model.ContentHash(chunk), Source: id})
	}
	msg, err := descriptor.Marshal(d)
	require.NoError(t, err)

	p.root = chain.Publish(msg)[0]
	p.descriptor = d
	return p
}

func newService(t *testing.T, chain *testutil.FakeChain, opts Options) *Service {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	svc, err := New(chain, opts)
	require.NoError(t, err)
	return svc
}

func TestRetrieveFileRoundTrip(t *testing.T) {
	chain := testutil.NewFakeChain()
	data := make([]byte, 10_000)
	_, err := rand.Read(data)
	require.NoError(t, err)
	p := publish(t, chain, "blob.bin", data, 999)

	out := t.TempDir()
	svc := newService(t, chain, Options{OutputDir: out, Concurrency: 3})

	res, err := svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, len(p.sources), res.Present)
	assert.Equal(t, p.descriptor.HashChunks.Hashes(), res.VerifiedHashes)
	assert.Empty(t, res.Missing)

	got, err := os.ReadFile(filepath.Join(out, "blob.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestRetrieveFileHelloWorld(t *testing.T) {
	chain := testutil.NewFakeChain()
	id1 := chain.PublishStrings("hello ")[0]
	id2 := chain.PublishStrings("world")[0]
	rootChain := chain.PublishStrings(`'{"filename":"a.txt","hash":"` + hashHelloWorld + `","hashChunks":{"` +
		hashHello + `":"` + id1.String() + `","` + hashWorld + `":"0x` + id2.String() + `"}}'`)

	svc := newService(t, chain, Options{})
	res, err := svc.RetrieveFile(context.Background(), rootChain[0], "")
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.Equal(t, rootChain[1], res.ChainTip)
	assert.Equal(t, []string{hashHello, hashWorld}, res.VerifiedHashes)

	got, err := os.ReadFile(res.Assembly.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestRetrieveFileForkedRoot(t *testing.T) {
	chain := testutil.NewFakeChain()
	p := publish(t, chain, "a.txt", []byte("hello world"), 6)
	chain.AddChild(p.root)

	out := t.TempDir()
	svc := newService(t, chain, Options{OutputDir: out})
	res, err := svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.True(t, res.ChainTip.IsZero(), "no tip without a walk")
	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestRetrieveFileMissingChunk(t *testing.T) {
	chain := testutil.NewFakeChain()
	p := publish(t, chain, "a.txt", []byte("hello world"), 6)
	require.Len(t, p.sources, 2)
	chain.FailOn(p.sources[1], errors.New("unreachable"))

	out := t.TempDir()
	svc := newService(t, chain, Options{OutputDir: out})
	res, err := svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)

	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Present)
	assert.Equal(t, 2, res.Required)
	assert.Equal(t, []string{hashWorld}, res.Missing)
	assert.Equal(t, []string{hashHello}, res.VerifiedHashes)
	require.Len(t, res.Fetch.Failures, 1)
	assert.Nil(t, res.Assembly)

	_, statErr := os.Stat(filepath.Join(out, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRetrieveFileResumesAfterFailure(t *testing.T) {
	chain := testutil.NewFakeChain()
	p := publish(t, chain, "a.txt", []byte("hello world"), 6)

	work := t.TempDir()
	chain.FailOn(p.sources[1], errors.New("unreachable"))
	svc := newService(t, chain, Options{WorkDir: work})
	res, err := svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)
	require.False(t, res.Complete)

	chain.FailOn(p.sources[1], nil)
	before := chain.Calls("SpendSolution")
	res, err = svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)
	assert.True(t, res.Complete)
	// Descriptor, tip walk and the one missing chunk; the canonical chunk
	// is reused.
	assert.Equal(t, before+3, chain.Calls("SpendSolution"))
}

func TestRetrieveFileTamperedChunk(t *testing.T) {
	chain := testutil.NewFakeChain()
	id1 := chain.PublishStrings("hello ")[0]
	id2 := chain.PublishStrings("w0rld")[0]
	d := &model.FileDescriptor{
		Filename: "a.txt",
		Hash:     hashHelloWorld,
		HashChunks: model.HashChunks{
			{Hash: hashHello, Source: id1},
			{Hash: hashWorld, Source: id2},
		},
	}
	override, err := descriptor.Marshal(d)
	require.NoError(t, err)

	svc := newService(t, chain, Options{})
	res, err := svc.RetrieveFile(context.Background(), chain.Mint(), string(override))
	require.NoError(t, err)

	assert.False(t, res.Complete)
	assert.Equal(t, []string{hashWorld}, res.Missing)
	require.Len(t, res.Fetch.Mismatches, 1)
	assert.Equal(t, hashWorld, res.Fetch.Mismatches[0].Expected)
	assert.True(t, svc.Chunks().Has(model.ContentHash([]byte("w0rld"))), "tampered bytes are kept under their own hash")
}

func TestRetrieveFileIntegrityMismatch(t *testing.T) {
	chain := testutil.NewFakeChain()
	id1 := chain.PublishStrings("hello ")[0]
	id2 := chain.PublishStrings("world")[0]
	d := &model.FileDescriptor{
		Filename: "a.txt",
		Hash:     hashHello,
		HashChunks: model.HashChunks{
			{Hash: hashHello, Source: id1},
			{Hash: hashWorld, Source: id2},
		},
	}
	override, err := descriptor.Marshal(d)
	require.NoError(t, err)

	svc := newService(t, chain, Options{})
	res, err := svc.RetrieveFile(context.Background(), chain.Mint(), string(override))
	require.Error(t, err)
	assert.True(t, chunkstore.IsIntegrityMismatch(err))
	require.NotNil(t, res)
	assert.False(t, res.Complete)
	require.NotNil(t, res.Assembly)
	assert.FileExists(t, res.Assembly.Path)
}

func TestRetrieveFileInvalidDescriptor(t *testing.T) {
	chain := testutil.NewFakeChain()
	root := chain.PublishStrings("not json")[0]

	svc := newService(t, chain, Options{})
	res, err := svc.RetrieveFile(context.Background(), root, "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, descriptor.IsInvalidDescriptor(err))
}

func TestRetrieveFileRootAsChunkSource(t *testing.T) {
	chain := testutil.NewFakeChain()
	id1 := chain.PublishStrings("hello ")[0]
	root := chain.Mint()
	d := &model.FileDescriptor{
		Filename: "a.txt",
		Hash:     hashHelloWorld,
		HashChunks: model.HashChunks{
			{Hash: hashHello, Source: id1},
			{Hash: hashWorld, Source: root},
		},
	}
	msg, err := descriptor.Marshal(d)
	require.NoError(t, err)
	chain.SpendMessage(root, msg)

	svc := newService(t, chain, Options{})
	res, err := svc.RetrieveFile(context.Background(), root, "")
	require.NoError(t, err)
	assert.False(t, res.Complete)
	require.Len(t, res.Fetch.Skipped, 1)
	assert.Equal(t, root, res.Fetch.Skipped[0].Source)
	assert.Equal(t, []string{hashWorld}, res.Missing)
}

func TestRetrieveFileRecordsProvenance(t *testing.T) {
	chain := testutil.NewFakeChain()
	p := publish(t, chain, "a.txt", []byte("hello world"), 6)
	chain.FailOn(p.sources[1], errors.New("unreachable"))

	db, err := store.Open(filepath.Join(t.TempDir(), "runs.db"), store.WithRunIDs(testutil.FixedRunID("run-1")))
	require.NoError(t, err)
	defer db.Close()

	svc := newService(t, chain, Options{Chain: "chia", Recorder: db})
	res, err := svc.RetrieveFile(context.Background(), p.root, "")
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)

	ctx := context.Background()
	run, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusIncomplete, run.Status)
	assert.Equal(t, "a.txt", run.Filename)
	assert.Equal(t, 1, run.Present)
	assert.Equal(t, 2, run.Required)

	chunks, err := db.RunChunks(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []store.ChunkRecord{{Source: p.sources[0].String(), Hash: hashHello, Size: 6}}, chunks)

	failures, err := db.RunFailures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, hashWorld, failures[0].Hash)
}

func TestReadMessage(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("old", "new")

	svc := newService(t, chain, Options{})
	msg, err := svc.ReadMessage(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "new", msg)
}

func TestWalk(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b")

	svc := newService(t, chain, Options{})
	var hops []model.Hop
	step, err := svc.Walk(context.Background(), ids[0], func(h model.Hop) error {
		hops = append(hops, h)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ids[2], step.Current)
	assert.Len(t, hops, 2)
}

func TestAssembleOffline(t *testing.T) {
	work := t.TempDir()
	chunks, err := chunkstore.Open(work)
	require.NoError(t, err)
	var a, b model.Identifier
	a[0], b[0] = 1, 2
	require.NoError(t, chunks.WritePending(a, []byte("hello ")))
	require.NoError(t, chunks.WritePending(b, []byte("world")))

	svc, err := New(nil, Options{WorkDir: work})
	require.NoError(t, err)

	res, err := svc.Assemble(&model.FileDescriptor{
		Filename:   "a.txt",
		Hash:       hashHelloWorld,
		HashChunks: model.HashChunks{{Hash: hashHello, Source: a}, {Hash: hashWorld, Source: b}},
	})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, filepath.Join(work, "a.txt"), res.Assembly.Path)
}

func TestNewRequiresWorkDir(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}
