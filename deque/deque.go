// Package deque provides a slice-backed double-ended queue.
package deque

// Deque is a slice-backed double-ended queue.
// The zero value is an empty deque ready to use.
type Deque[Elem any] struct {
	el []Elem
	// left is the position of the leftmost valid element in el.
	// left >= len(el) implies the deque is empty.
	left int
}

// Len returns the number of elements in the deque.
func (d Deque[Elem]) Len() int {
	return len(d.el) - d.left
}

// Append adds elements to the end of the deque.
func (d Deque[Elem]) Append(ee ...Elem) Deque[Elem] {
	if d.left > 0 && d.left >= len(d.el)/2 {
		// More than half of the backing array is dead space at the front.
		// Slide the live elements down before growing.
		n := copy(d.el, d.el[d.left:])
		clear(d.el[n:])
		d.el = d.el[:n]
		d.left = 0
	}
	d.el = append(d.el, ee...)
	return d
}

// Front returns the element at the front of the deque.
// ok is false if the deque is empty.
func (d Deque[Elem]) Front() (e Elem, ok bool) {
	if d.Len() == 0 {
		return e, false
	}
	return d.el[d.left], true
}

// DropFront removes n elements from the front of the deque.
// If n is negative, there is no change.
// If n is larger than the deque's size, the result is empty.
func (d Deque[Elem]) DropFront(n int) Deque[Elem] {
	if n <= 0 {
		return d
	}
	if n >= d.Len() {
		return d.Reset()
	}
	clear(d.el[d.left : d.left+n])
	d.left += n
	return d
}

// Reset removes all elements from the deque.
func (d Deque[Elem]) Reset() Deque[Elem] {
	clear(d.el)
	d.el = d.el[:0]
	d.left = 0
	return d
}
