// Package review models collected code-review comments and the enriched
// items derived from them.
package review

// RawRecord is one collected review comment with its diff context.
type RawRecord struct {
	repo        string
	prNumber    int
	filePath    string
	commentBody string
	diffContext string
}

// NewRawRecord creates a RawRecord.
func NewRawRecord(repo string, prNumber int, filePath, commentBody, diffContext string) RawRecord {
	return RawRecord{
		repo:        repo,
		prNumber:    prNumber,
		filePath:    filePath,
		commentBody: commentBody,
		diffContext: diffContext,
	}
}

// Repo returns the repository identifier, e.g. "openshift/api".
func (r RawRecord) Repo() string { return r.repo }

// PRNumber returns the pull request number.
func (r RawRecord) PRNumber() int { return r.prNumber }

// FilePath returns the file the comment was left on.
func (r RawRecord) FilePath() string { return r.filePath }

// CommentBody returns the full comment text.
func (r RawRecord) CommentBody() string { return r.commentBody }

// DiffContext returns the diff hunk surrounding the comment.
func (r RawRecord) DiffContext() string { return r.diffContext }

// Key returns the identity key of the record.
func (r RawRecord) Key() IdentityKey {
	return IdentityKey{
		Repo:     r.repo,
		PR:       r.prNumber,
		FilePath: r.filePath,
		Comment:  r.commentBody,
	}
}

// IdentityKey defines "same record" for incremental ingestion. Surrogate ids
// play no part in it.
type IdentityKey struct {
	Repo     string
	PR       int
	FilePath string
	Comment  string
}

// Difference returns the records whose keys are not in existing, preserving
// input order. Duplicates within records are kept.
func Difference(records []RawRecord, existing map[IdentityKey]struct{}) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if _, ok := existing[r.Key()]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
