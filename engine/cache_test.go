package engine

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddResourceComputesEarlyAbsoluteExpiry(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})

	ce := e.ListCachedAnswers("host.local.", TypeA, nil)
	require.NotNil(t, ce)
	// 1000 + 120/2 + CacheTTLHalfLifeBias
	assert.Equal(t, uint32(1000+60+CacheTTLHalfLifeBias), ce.ans.TTL)
}

func TestAddResourceGoodbyeRetiresMatchingEntries(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})
	require.NotNil(t, e.ListCachedAnswers("host.local.", TypeA, nil))

	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 0})

	assert.Nil(t, e.ListCachedAnswers("host.local.", TypeA, nil))
}

func TestAddResourceCacheFlushZeroesPriorEntriesWithoutDeleting(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})
	old := e.ListCachedAnswers("host.local.", TypeA, nil)
	require.NotNil(t, old)

	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN | ClassCacheFlush, TTL: 120, IP: net.IPv4(5, 6, 7, 8)})

	// The stale entry's TTL was zeroed in place, not unlinked yet.
	assert.Equal(t, uint32(0), old.ans.TTL)

	e.GC()
	remaining := e.ListCachedAnswers("host.local.", TypeA, nil)
	require.NotNil(t, remaining)
	assert.True(t, net.IPv4(5, 6, 7, 8).Equal(remaining.ans.IP))
	assert.Nil(t, e.ListCachedAnswers("host.local.", TypeA, remaining))
}

func TestFlushForcesExpiryOfEveryEntry(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.AddResource(Answer{Name: "a.local.", Type: TypeA, Class: ClassIN, TTL: 3600, IP: net.IPv4(1, 1, 1, 1)})
	e.AddResource(Answer{Name: "b.local.", Type: TypeA, Class: ClassIN, TTL: 3600, IP: net.IPv4(2, 2, 2, 2)})

	e.Flush()

	assert.Nil(t, e.ListCachedAnswers("a.local.", TypeA, nil))
	assert.Nil(t, e.ListCachedAnswers("b.local.", TypeA, nil))
}

func TestFlushResetsSurvivingQueriesToRetryImmediately(t *testing.T) {
	e, clock := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 3600, IP: net.IPv4(1, 2, 3, 4)})
	e.Query("host.local.", TypeA, func(Answer, any) int { return 0 }, nil)

	q := e.lookupQuery("host.local.", TypeA, nil)
	require.NotNil(t, q)
	assert.Greater(t, q.nextTry, uint32(1000)) // scheduled well before the long TTL lapses

	clock.advance(time.Minute)
	e.Flush()

	assert.Nil(t, e.ListCachedAnswers("host.local.", TypeA, nil))
	assert.Equal(t, e.nowSeconds(), q.nextTry, "query should be due immediately with nothing cached")
}

func TestGCOnlyRetiresEntriesPastTheirDeadline(t *testing.T) {
	e, clock := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})

	e.GC() // nothing expired yet
	assert.NotNil(t, e.ListCachedAnswers("host.local.", TypeA, nil))

	clock.advance(time.Hour)
	e.GC()
	assert.Nil(t, e.ListCachedAnswers("host.local.", TypeA, nil))
}

func TestQueryReceivesGoingAwaySignalOnExpiry(t *testing.T) {
	e, clock := newTestEngine(1000)
	var delivered []Answer
	e.Query("host.local.", TypeA, func(a Answer, _ any) int {
		delivered = append(delivered, a)
		return 0
	}, nil)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})

	require.Len(t, delivered, 1)
	assert.Equal(t, uint32(120), delivered[0].TTL)

	clock.advance(time.Hour)
	e.GC()

	require.Len(t, delivered, 2)
	assert.Equal(t, uint32(0), delivered[1].TTL)
}
