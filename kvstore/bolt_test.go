package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put([]byte("spec:a"), []byte("hello")))

	v, ok, err := s.Get([]byte("spec:a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(v))
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get([]byte("nope"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompareAndSwapOnAbsentKey(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.CompareAndSwap([]byte("index:workflow:spec-a"), nil, []byte("v1"))
	require.NoError(t, err)
	require.True(t, ok)

	v, _, _ := s.Get([]byte("index:workflow:spec-a"))
	require.Equal(t, "v1", string(v))
}

func TestCompareAndSwapRejectsStaleValue(t *testing.T) {
	s := openTestStore(t)
	key := []byte("index:workflow:spec-a")
	_, err := s.CompareAndSwap(key, nil, []byte("v1"))
	require.NoError(t, err)

	ok, err := s.CompareAndSwap(key, []byte("wrong"), []byte("v2"))
	require.NoError(t, err)
	require.False(t, ok)

	v, _, _ := s.Get(key)
	require.Equal(t, "v1", string(v))
}

func TestCompareAndSwapAcceptsMatchingValue(t *testing.T) {
	s := openTestStore(t)
	key := []byte("index:workflow:spec-a")
	_, err := s.CompareAndSwap(key, nil, []byte("v1"))
	require.NoError(t, err)

	ok, err := s.CompareAndSwap(key, []byte("v1"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestScanPrefixReturnsOnlyMatching(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put([]byte("case:state:1"), []byte("a")))
	require.NoError(t, s.Put([]byte("case:state:2"), []byte("b")))
	require.NoError(t, s.Put([]byte("timer:1"), []byte("c")))

	results, err := s.ScanPrefix([]byte("case:state:"))
	require.NoError(t, err)
	require.Len(t, results, 2)
}
