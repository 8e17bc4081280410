// Package files persists the last known file listings so the client can
// start offline.
//
// Each listing ("view") is stored as an ordered set of rows keyed by
// (view, id). ReplaceView swaps a whole view in one statement batch; callers
// that need atomicity run it inside dbx.WithTx.
//
//	repo := files.NewSQLiteRepository(db)
//	_ = repo.ReplaceView(ctx, files.ViewActive, records)
//	cached, _ := repo.GetView(ctx, files.ViewActive)
package files
