package engine

import "time"

// Test doubles for Clock, Jitter and MessageBuilder. Kept in a
// non-table-driven helper file so every *_test.go in this package can
// share them without redeclaring.

type fakeClock struct {
	micros uint64
}

func (c *fakeClock) NowMicros() uint64 { return c.micros }

func (c *fakeClock) advance(d time.Duration) { c.micros += uint64(d / time.Microsecond) }

// fakeJitter always returns the same delay so probing/publish timing tests
// stay deterministic; these tests do not exercise the real jitter range.
type fakeJitter struct {
	millis int64
}

func (j *fakeJitter) PauseDelayMillis() int64 {
	if j.millis == 0 {
		return 50
	}
	return j.millis
}

type recordedQuestion struct {
	name  string
	qtype RRType
	class uint16
}

type recordedAnswer struct {
	section Section
	answer  Answer
}

// fakeBuilder is a MessageBuilder that just records what was appended,
// optionally refusing appends once a caller-set cap is reached so frame
// limit behavior (§8 "Boundary behaviors") can be exercised without a real
// wire codec.
type fakeBuilder struct {
	id  uint16
	qr  bool
	aa  bool
	cap int // 0 = unlimited

	questions []recordedQuestion
	answers   []recordedAnswer
}

func (b *fakeBuilder) Reset(id uint16, qr, aa bool) {
	b.id, b.qr, b.aa = id, qr, aa
	b.questions = nil
	b.answers = nil
}

func (b *fakeBuilder) Len() int {
	return len(b.questions) + len(b.answers)
}

func (b *fakeBuilder) full() bool {
	return b.cap != 0 && b.Len() >= b.cap
}

func (b *fakeBuilder) AddQuestion(name string, qtype RRType, class uint16) bool {
	if b.full() {
		return false
	}
	b.questions = append(b.questions, recordedQuestion{name, qtype, class})
	return true
}

func (b *fakeBuilder) AddRecord(section Section, a Answer) bool {
	if b.full() {
		return false
	}
	b.answers = append(b.answers, recordedAnswer{section, a})
	return true
}

// jitterDelay matches the fixed delay newTestEngine's fakeJitter returns.
const jitterDelay = 50 * time.Millisecond

func secondsDuration(s uint32) time.Duration {
	return time.Duration(s) * time.Second
}

func newTestEngine(startSeconds uint32) (*Engine, *fakeClock) {
	clock := &fakeClock{micros: uint64(startSeconds) * 1_000_000}
	e := New(ClassIN, 0, clock, &fakeJitter{millis: 50})
	return e, clock
}
