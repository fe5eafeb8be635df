package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/qmdtutor/cmd/qmdtutor/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "render":
		err = commands.RenderCommand(args)
	case "exec":
		err = commands.ExecCommand(args)
	case "lessons":
		err = commands.LessonsCommand(args)
	case "validate":
		err = commands.ValidateCommand(args)
	case "progress":
		err = commands.ProgressCommand(args)
	case "version":
		fmt.Printf("qmdtutor version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("qmdtutor - Interactive Quarto tutorial")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  qmdtutor serve [directory]          Start the tutorial server")
	fmt.Println("  qmdtutor render <file> [-o out]     Render a document to HTML")
	fmt.Println("  qmdtutor exec <file|-> [--lang r]   Run a code chunk through the simulator")
	fmt.Println("  qmdtutor lessons [directory]        List lessons and exercises")
	fmt.Println("  qmdtutor validate [directory]       Check lesson files for errors")
	fmt.Println("  qmdtutor progress [list|reset]      Show or clear completed lessons")
	fmt.Println("  qmdtutor version                    Show version")
	fmt.Println("  qmdtutor help                       Show this help")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  --port, -p <port>      Port to listen on (default: 8080)")
	fmt.Println("  --host <host>          Host to bind (default: localhost)")
	fmt.Println("  --watch, -w            Reload lessons when files change")
	fmt.Println("  --config, -c <file>    Config file (default: qmdtutor.yaml)")
	fmt.Println()
	fmt.Println("Without a directory the bundled lessons are served.")
}
