// Package burst collects near-simultaneous message parts (several photos of
// one dish, say) into a single logical submission. A fixed debounce window
// starts at the first part; when it elapses the buffered parts are drained
// together and handed downstream.
package burst
