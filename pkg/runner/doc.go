/*
Package runner implements a line console that edits one document.

The Console reads commands through an IOHandler, applies them to an
arbor.Designer and prints the outcome. Arrow commands replay keyboard
gestures through the designer's pointer normalizer, so reordering goes
through the same drag engine as the canvas.

# Key Components

  - Console: the read-execute-print loop, stopped by quit, EOF or SIGINT.
  - IOHandler: how commands come in and results go out.
  - TextHandler: interactive CLI usage with an optional markdown renderer.
  - JSONHandler: JSON Lines for scripted use.

# Usage

	c := runner.NewConsole(designer,
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := c.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
