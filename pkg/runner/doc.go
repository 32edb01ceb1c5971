/*
Package runner implements the presentation loop for reasoning chains.

It is the bridge between the engine, which produces emissions, and the outside world.
The Runner reads queries and writes every emission through a pluggable IOHandler:
TextHandler prints only the entries each emission adds, with their thinking times,
and JSONHandler writes one JSON line per emission for machine consumers.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithLogger(logger),
	)

	if err := r.Loop(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
