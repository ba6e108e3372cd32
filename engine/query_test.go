package engine

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRegistrationIsANoOpWithoutCallback(t *testing.T) {
	e, _ := newTestEngine(1000)
	q := e.Query("host.local.", TypeA, nil, nil)
	assert.Nil(t, q)
}

func TestQueryOverwritesCallbackOnReRegistration(t *testing.T) {
	e, _ := newTestEngine(1000)
	first := e.Query("host.local.", TypeA, func(Answer, any) int { return 0 }, "first")
	require.NotNil(t, first)

	second := e.Query("host.local.", TypeA, func(Answer, any) int { return 0 }, "second")
	require.NotNil(t, second)
	assert.Same(t, first, second) // same registration, just updated
	assert.Equal(t, "second", second.arg)
}

func TestQueryWithNilCallbackUnregisters(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.Query("host.local.", TypeA, func(Answer, any) int { return 0 }, nil)
	assert.NotNil(t, e.lookupQuery("host.local.", TypeA, nil))

	e.Query("host.local.", TypeA, nil, nil)
	assert.Nil(t, e.lookupQuery("host.local.", TypeA, nil))
}

func TestANYQueryMatchesEveryRecordType(t *testing.T) {
	e, _ := newTestEngine(1000)
	var types []RRType
	e.Query("host.local.", TypeANY, func(a Answer, _ any) int {
		types = append(types, a.Type)
		return 0
	}, nil)

	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})
	e.AddResource(Answer{Name: "host.local.", Type: TypeTXT, Class: ClassIN, TTL: 120, RData: []byte("v=1")})

	assert.ElementsMatch(t, []RRType{TypeA, TypeTXT}, types)
}

func TestResourceNotifiesOnlyFirstMatchingQuery(t *testing.T) {
	e, _ := newTestEngine(1000)
	var a, b int
	e.Query("_http._tcp.local.", TypePTR, func(Answer, any) int { a++; return 0 }, nil)
	e.Query("_http._tcp.local.", TypeANY, func(Answer, any) int { b++; return 0 }, nil)

	e.AddResource(Answer{Name: "_http._tcp.local.", Type: TypePTR, Class: ClassIN, TTL: 4500, RDName: "instance._http._tcp.local."})

	// A cache entry back-links at most one query: the first one registered.
	assert.Equal(t, 1, a)
	assert.Equal(t, 0, b)
}

func TestQueryCallbackReturningMinusOneUnregisters(t *testing.T) {
	e, _ := newTestEngine(1000)
	calls := 0
	e.Query("host.local.", TypeA, func(Answer, any) int {
		calls++
		return -1
	}, nil)

	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})
	assert.Equal(t, 1, calls)
	assert.Nil(t, e.lookupQuery("host.local.", TypeA, nil))

	// A second resource for the same name no longer has anything watching it.
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(5, 6, 7, 8)})
	assert.Equal(t, 1, calls)
}

func TestQueryResetComputesNextTryBeforeCacheExpiry(t *testing.T) {
	e, _ := newTestEngine(1000)
	e.AddResource(Answer{Name: "host.local.", Type: TypeA, Class: ClassIN, TTL: 120, IP: net.IPv4(1, 2, 3, 4)})
	ce := e.ListCachedAnswers("host.local.", TypeA, nil)
	require.NotNil(t, ce)

	q := e.Query("host.local.", TypeA, func(Answer, any) int { return 0 }, nil)
	require.NotNil(t, q)

	assert.Equal(t, ce.ans.TTL-queryReplyLead, q.nextTry)
	assert.Equal(t, q.nextTry, e.checkqlist)
}
