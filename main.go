package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abiosoft/ishell"
	"github.com/spf13/pflag"

	"github.com/avoronov/fat16fs/commands"
	"github.com/avoronov/fat16fs/fat16"
	"github.com/avoronov/fat16fs/fsapi"
	"github.com/avoronov/fat16fs/fusefs"
)

var (
	imagePath  = pflag.String("image", "", "path to the backing image file (created and formatted if missing)")
	shellMode  = pflag.Bool("shell", false, "open an interactive shell on the image instead of mounting")
	allowOther = pflag.Bool("allow-other", false, "allow other users to access the mount")
	debug      = pflag.Bool("debug", false, "enable debug logging and FUSE protocol traces")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s --image=<path> [--shell | <mountpoint>]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "an image file must be given with --image=<path>")
		pflag.Usage()
		os.Exit(2)
	}

	fsys, err := fat16.Mount(*imagePath, logger)
	if err != nil {
		logger.Error("opening image", "path", *imagePath, "error", err)
		os.Exit(1)
	}

	if *shellMode {
		runShell(fsys)
		err = fsys.Close()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	mountpoint := pflag.Arg(0)
	if mountpoint == "" {
		fmt.Fprintln(os.Stderr, "a mountpoint is required unless --shell is given")
		pflag.Usage()
		_ = fsys.Close()
		os.Exit(2)
	}

	server, err := fusefs.Mount(fusefs.Options{
		Mountpoint: mountpoint,
		Filesystem: fsys,
		AllowOther: *allowOther,
		Debug:      *debug,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("mounting", "mountpoint", mountpoint, "error", err)
		_ = fsys.Close()
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		logger.Info("unmounting", "mountpoint", mountpoint)
		err := server.Unmount()
		if err != nil {
			logger.Error("unmount failed, still busy?", "error", err)
		}
	}()

	server.Wait()

	err = fsys.Close()
	if err != nil {
		logger.Error("flushing image", "path", *imagePath, "error", err)
		os.Exit(1)
	}
	logger.Info("image flushed", "path", *imagePath)
}

func runShell(fsys *fat16.Filesystem) {
	cwd := "/"

	shell := ishell.New()
	shell.SetPrompt("/ > ")
	shell.Set("fs", fsys)
	shell.Set("vfs", fsapi.New(fsys))
	shell.Set("cwd", &cwd)

	shell.AddCmd(&ishell.Cmd{
		Name: "format",
		Help: "re-initialise the image, discarding all contents",
		Func: commands.Format,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "ls",
		Help: "list a directory",
		Func: commands.Ls,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "cd",
		Help: "change the working directory",
		Func: commands.Cd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pwd",
		Help: "print the working directory",
		Func: commands.Pwd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "mkdir",
		Help: "create a directory",
		Func: commands.Mkdir,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "rmdir",
		Help: "remove an empty directory",
		Func: commands.Rmdir,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "touch",
		Help: "create an empty file",
		Func: commands.Touch,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "rm",
		Help: "remove a file",
		Func: commands.Rm,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "mv",
		Help: "move or rename a file or directory",
		Func: commands.Mv,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "cp",
		Help: "copy a file inside the image",
		Func: commands.Cp,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "incp",
		Help: "copy a host file into the image",
		Func: commands.Incp,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "outcp",
		Help: "copy a file from the image to the host",
		Func: commands.Outcp,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "cat",
		Help: "print a file",
		Func: commands.Cat,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "info",
		Help: "print superblock layout and free space",
		Func: commands.Info,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "check",
		Help: "verify filesystem consistency",
		Func: commands.Check,
	})

	shell.Run()
}
