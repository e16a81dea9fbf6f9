package reconcile

// pathSegment is one level of a TreeDict key: the path component as it
// appears in the event's source path, paired with the corresponding
// component of its destination path (equal to src for everything but a
// pending move). Keying on the pair, rather than src alone, keeps a
// pending move in its own slot, apart from a non-move event recorded at
// the same source path.
type pathSegment struct {
	src, dest string
}

// treeNode is one level of the TreeDict. A node is a leaf when event is
// non-nil; it may simultaneously have children (an UPDATE recorded on a
// folder that later gains tracked descendants).
type treeNode struct {
	children map[pathSegment]*treeNode
	order    []pathSegment // insertion order of children, mirrors OrderedDict
	event    *rawEvent
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[pathSegment]*treeNode)}
}

func (n *treeNode) child(seg pathSegment) *treeNode {
	c, ok := n.children[seg]
	if !ok {
		c = newTreeNode()
		n.children[seg] = c
		n.order = append(n.order, seg)
	}

	return c
}

// TreeDict is the consolidator's in-flight event store: an ordered tree
// keyed by path-segment pairs, mirroring the nested OrderedDict the
// original watchdog consolidator used. Ordered iteration (Children) gives
// Flush its parent-before-child order; a flat
// map keyed by full path cannot express "insertion order of this
// subtree" once siblings are mixed in, which is why this stays nested
// rather than flattened (see SPEC_FULL.md §9).
type TreeDict struct {
	root *treeNode
}

func NewTreeDict() *TreeDict {
	return &TreeDict{root: newTreeNode()}
}

func splitSegments(path string) []string {
	var segs []string
	start := 0

	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}

	if start < len(path) {
		segs = append(segs, path[start:])
	}

	return segs
}

// segmentsFor builds the pathSegment slice for an event, pairing each
// src component with the corresponding dest component (equal to src for
// non-move events).
func segmentsFor(srcPath, destPath string) []pathSegment {
	srcParts := splitSegments(srcPath)
	destParts := srcParts

	if destPath != "" && destPath != srcPath {
		destParts = splitSegments(destPath)
	}

	segs := make([]pathSegment, len(srcParts))
	for i, s := range srcParts {
		d := s
		if i < len(destParts) {
			d = destParts[i]
		}

		segs[i] = pathSegment{src: s, dest: d}
	}

	return segs
}

// Set stores ev at the path derived from its SrcPath/DestPath, creating
// intermediate nodes as needed.
func (t *TreeDict) Set(ev rawEvent) {
	n := t.root
	for _, seg := range segmentsFor(ev.srcPath, ev.destPath) {
		n = n.child(seg)
	}

	n.event = &ev
}

// Get returns the event stored at srcPath, if any.
func (t *TreeDict) Get(srcPath string) (rawEvent, bool) {
	n := t.root
	for _, seg := range segmentsFor(srcPath, "") {
		c, ok := n.children[pathSegment{src: seg.src, dest: seg.src}]
		if !ok {
			return rawEvent{}, false
		}

		n = c
	}

	if n.event == nil {
		return rawEvent{}, false
	}

	return *n.event, true
}

// Contains reports whether srcPath has a stored event.
func (t *TreeDict) Contains(srcPath string) bool {
	_, ok := t.Get(srcPath)
	return ok
}

// Delete removes the event stored at srcPath, leaving any descendant
// subtree untouched (the node is kept if it still has children).
func (t *TreeDict) Delete(srcPath string) {
	n := t.root
	for _, seg := range segmentsFor(srcPath, "") {
		c, ok := n.children[pathSegment{src: seg.src, dest: seg.src}]
		if !ok {
			return
		}

		n = c
	}

	n.event = nil
}

// DeleteMove removes the move event stored under the exact (srcPath,
// destPath) pair Set built it from. A move's leaf segment pairs its src
// and dest components, which Get/Delete's identity-keyed lookup can never
// match — callers that found the event via Children()/a subtree scan use
// this instead to clear it.
func (t *TreeDict) DeleteMove(srcPath, destPath string) {
	n := t.root
	for _, seg := range segmentsFor(srcPath, destPath) {
		c, ok := n.children[seg]
		if !ok {
			return
		}

		n = c
	}

	n.event = nil
}

// Children returns every leaf event in the tree, in pre-order (parents
// before the descendants recorded under them) — the ordering a flush
// relies on.
func (t *TreeDict) Children() []rawEvent {
	var out []rawEvent
	collectLeaves(t.root, &out)

	return out
}

func collectLeaves(n *treeNode, out *[]rawEvent) {
	if n.event != nil {
		*out = append(*out, *n.event)
	}

	for _, seg := range n.order {
		collectLeaves(n.children[seg], out)
	}
}

// Len reports the number of leaf events currently stored.
func (t *TreeDict) Len() int {
	return len(t.Children())
}

// Clear empties the tree.
func (t *TreeDict) Clear() {
	t.root = newTreeNode()
}
