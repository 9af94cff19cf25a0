package preview

import "github.com/ije/rex"

// Handler adapts Store onto the teacher's own HTTP framework: a single
// rex.Handle that dispatches POST /~upload and /~live to their own
// handlers and everything else to fetch interception, mirroring router()'s
// single-switch dispatch style.
func Handler(s *Store) rex.Handle {
	return func(ctx *rex.Context) interface{} {
		switch {
		case ctx.R.Method == "POST" && ctx.Path.String() == "/~upload":
			s.ServeUpload(ctx.W, ctx.R)
			return nil
		case ctx.Path.String() == "/~live":
			s.ServeLive(ctx.W, ctx.R)
			return nil
		default:
			s.ServeFetch(ctx.W, ctx.R)
			return nil
		}
	}
}
