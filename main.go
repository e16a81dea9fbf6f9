// Command nodesync reconciles a local filesystem tree with a remote
// projects host: a sync daemon, one-shot audit, conflict listing and
// resolution, and status/node-selection commands.
package main

import "context"

func main() {
	root := newRootCmd()
	exitOnError(root.ExecuteContext(context.Background()))
}
