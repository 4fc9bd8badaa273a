// Package questionpool holds the question pool aggregate, its events and the
// list projection.
//
// A pool is created once, then mutated only by appending events:
//
//	p := &questionpool.Pool{}
//	_ = p.Create(questionpool.NewID(), questionpool.NewData("Math", ""), "alice")
//	_ = p.AddQuestion(q1)
//	_ = repo.Save(ctx, p)
//
// Deleting a pool appends a tombstone. A deleted pool can still be loaded but
// rejects every mutator with es.ErrValidationFailed.
package questionpool
