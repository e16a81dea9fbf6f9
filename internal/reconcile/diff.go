package reconcile

import "path"

// diffResult is the output of a three-way (well, two-way at a time) set
// diff between a source view and the target (always the DB) view.
type diffResult struct {
	created  []string
	deleted  []string
	moved    [][2]string // [0]=old path, [1]=new path
	modified []string    // paths (post-move, where applicable) whose content differs
}

// diffAudits implements the original Auditor._diff(source, target)
// algorithm: set difference on paths, identity-based (fid) reclassification
// of same-path-different-identity entries, move extraction via reverse
// fid maps, and content-hash modification detection including moved
// pairs. source and target are path -> Audit maps; target is always the
// database view (spec §4.3).
func diffAudits(source, target map[string]Audit) diffResult {
	created := map[string]bool{}
	deleted := map[string]bool{}

	for p := range source {
		if _, ok := target[p]; !ok {
			created[p] = true
		}
	}

	for p := range target {
		if _, ok := source[p]; !ok {
			deleted[p] = true
		}
	}

	// Same path, different identity: both sides disagree on what lives
	// there, so treat as a delete of the old thing and a create of the
	// new. Guarded to both fids being non-empty — the local view (source
	// here when diffing local against the DB) never carries a fid, since
	// the filesystem has no identity concept of its own, and an absent
	// fid on one side means "no identity system", not "different identity".
	for p, sa := range source {
		ta, ok := target[p]
		if !ok || sa.FID == "" || ta.FID == "" {
			continue
		}

		if sa.FID != ta.FID {
			created[p] = true
			deleted[p] = true
		}
	}

	// Build reverse fid->path maps restricted to the still-pending
	// created/deleted sets, then pull out moves: a deleted path whose fid
	// reappears at a created path is a move, not an independent
	// delete+create.
	idInSourceCreated := map[string]string{} // fid -> created path
	for p := range created {
		if a, ok := source[p]; ok && a.FID != "" {
			idInSourceCreated[a.FID] = p
		}
	}

	idInTargetDeleted := map[string]string{} // fid -> deleted path
	for p := range deleted {
		if a, ok := target[p]; ok && a.FID != "" {
			idInTargetDeleted[a.FID] = p
		}
	}

	var moved [][2]string

	for fid, oldPath := range idInTargetDeleted {
		newPath, ok := idInSourceCreated[fid]
		if !ok {
			continue
		}

		moved = append(moved, [2]string{oldPath, newPath})
		delete(created, newPath)
		delete(deleted, oldPath)
	}

	// Content-hash fallback: neither side may carry a fid at all (the
	// local view never does), so a unique sha256 match between a
	// still-pending created path and deleted path is also recognized as
	// a move — the one-shot-diff analogue of the Consolidator's rule 4
	// basename+sha create/delete matching. Ambiguous (non-unique) sha
	// matches are left as independent create+delete rather than guessed.
	shaToCreated := map[string]string{}
	shaCreatedCount := map[string]int{}

	for p := range created {
		if a, ok := source[p]; ok && a.SHA256 != "" {
			shaToCreated[a.SHA256] = p
			shaCreatedCount[a.SHA256]++
		}
	}

	shaToDeleted := map[string]string{}
	shaDeletedCount := map[string]int{}

	for p := range deleted {
		if a, ok := target[p]; ok && a.SHA256 != "" {
			shaToDeleted[a.SHA256] = p
			shaDeletedCount[a.SHA256]++
		}
	}

	for sha, newPath := range shaToCreated {
		if shaCreatedCount[sha] != 1 || shaDeletedCount[sha] != 1 {
			continue
		}

		oldPath, ok := shaToDeleted[sha]
		if !ok {
			continue
		}

		moved = append(moved, [2]string{oldPath, newPath})
		delete(created, newPath)
		delete(deleted, oldPath)
	}

	var modified []string

	for p, sa := range source {
		ta, ok := target[p]
		if !ok || sa.SHA256 == "" || ta.SHA256 == "" {
			continue
		}

		if created[p] || deleted[p] {
			continue
		}

		if sa.SHA256 != ta.SHA256 {
			modified = append(modified, p)
		}
	}

	for _, pair := range moved {
		sa, sok := source[pair[1]]
		ta, tok := target[pair[0]]

		if sok && tok && sa.SHA256 != "" && ta.SHA256 != "" && sa.SHA256 != ta.SHA256 {
			modified = append(modified, pair[1])
		}
	}

	return diffResult{
		created:  setToSlice(created),
		deleted:  setToSlice(deleted),
		moved:    moved,
		modified: modified,
	}
}

func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}

	return out
}

// ancestorsOf returns every ancestor directory path of p, shallowest
// last (immediate parent first), stopping at root. Used to synthesize
// the parent-folder UPDATE events spec §4.3 requires so downstream code
// can always locate a changed descendant's parent context.
func ancestorsOf(p, root string) []string {
	var out []string

	dir := path.Dir(p)
	for dir != "." && dir != "/" && dir != root && len(dir) >= len(root) {
		out = append(out, dir)
		dir = path.Dir(dir)
	}

	return out
}
