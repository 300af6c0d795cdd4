/*
Package script runs rules written in JavaScript instead of the expression
language.

A script defines a flow function that receives the input object and
returns the output object:

	function flow(input) {
	    var out = {};
	    if (input.age > 18) {
	        out.stage = "adult";
	    }
	    return out;
	}

The JavaScript runtime is not safe for concurrent use, so one worker
goroutine owns it. Flow calls are queued (WithQueueSize bounds the queue)
and run one at a time. Cancelling a call's context interrupts the script.

Functions registered with a rulekit.Engine can be exposed to the script
as globals:

	eng, err := script.New(src, script.WithFunctions(engine.Functions()))
	defer eng.Close()
	out, err := eng.Flow(ctx, input)
*/
package script
