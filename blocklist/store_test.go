package blocklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMissingFileIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	ips, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ips)
	assert.False(t, s.Contains("203.0.113.9"))
}

func TestAddValidatesAndDeduplicates(t *testing.T) {
	s := New(t.TempDir())

	res, err := s.Add([]string{"203.0.113.9", "not-an-ip", "2001:db8::1", ""})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"203.0.113.9", "2001:db8::1"}, res.Added)
	assert.Len(t, res.Invalid, 2)
	assert.Empty(t, res.AlreadyPresent)

	// adding again is a no-op
	res, err = s.Add([]string{"203.0.113.9"})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"203.0.113.9"}, res.AlreadyPresent)

	ips, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ips, 2)
	assert.True(t, s.Contains("203.0.113.9"))
	assert.True(t, s.Contains("2001:db8::1"))
}

func TestRemove(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Add([]string{"203.0.113.9", "203.0.113.10"})
	require.NoError(t, err)

	res, err := s.Remove([]string{"203.0.113.9", "garbage", "198.51.100.1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.9"}, res.Removed)
	assert.Equal(t, []string{"garbage"}, res.Invalid)

	ips, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.10"}, ips)
	assert.False(t, s.Contains("203.0.113.9"))
}

func TestContainsNormalizesLiterals(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Add([]string{"2001:DB8:0:0:0:0:0:1"})
	require.NoError(t, err)
	assert.True(t, s.Contains("2001:db8::1"))
}

func TestPersistedFileIsAlwaysValidJSON(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	_, err := s.Add([]string{"203.0.113.9"})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "blocklist.json"))
	require.NoError(t, err)
	var ips []string
	require.NoError(t, json.Unmarshal(b, &ips))
	assert.Equal(t, []string{"203.0.113.9"}, ips)
}

func TestConcurrentMutationNeverCorruptsStore(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		ip := []string{"203.0.113." + string(rune('1'+i))}
		go func(ips []string) {
			defer wg.Done()
			_, err := s.Add(ips)
			assert.NoError(t, err)
		}(ip)
		go func(ips []string) {
			defer wg.Done()
			_, err := s.Remove(ips)
			assert.NoError(t, err)
		}(ip)
	}
	wg.Wait()

	// whatever the interleaving, the file must parse
	_, err := s.List()
	assert.NoError(t, err)
	if b, err := os.ReadFile(filepath.Join(dir, "blocklist.json")); err == nil {
		var ips []string
		assert.NoError(t, json.Unmarshal(b, &ips))
	}
}
