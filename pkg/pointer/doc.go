/*
Package pointer turns raw mouse, touch, pointer and keyboard input into one
stream of move gestures.

Every input family feeds the same per-pointer session: a press arms it, the
first non-zero motion emits MoveStart followed by Move, later motion emits Move,
and a release emits MoveEnd only if something moved. Arrow keys synthesize a
complete one-unit gesture. Samples with zero delta are dropped.

Sessions are keyed by pointer type and identifier so concurrent touches stay
independent. The first session to activate while none is active is primary;
consumers that mutate state should only follow primary events.
*/
package pointer
