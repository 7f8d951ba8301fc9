package commands

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/spf13/afero"

	"github.com/avoronov/fat16fs/fat16"
	"github.com/avoronov/fat16fs/fsapi"
)

func getFs(c *ishell.Context) *fat16.Filesystem {
	return c.Get("fs").(*fat16.Filesystem)
}

func getVfs(c *ishell.Context) *fsapi.Fs {
	return c.Get("vfs").(*fsapi.Fs)
}

func absPath(c *ishell.Context, arg string) string {
	if strings.HasPrefix(arg, "/") {
		return path.Clean(arg)
	}
	cwd := c.Get("cwd").(*string)

	return path.Clean(path.Join(*cwd, arg))
}

func requireArgs(c *ishell.Context, n int, usage string) bool {
	if len(c.Args) < n {
		c.Err(errors.New("usage: " + usage))
		return false
	}

	return true
}

func Format(c *ishell.Context) {
	fs := getFs(c)

	err := fs.Format()
	if err != nil {
		c.Err(err)
		return
	}

	cwd := c.Get("cwd").(*string)
	*cwd = "/"
	c.SetPrompt("/ > ")
	c.Println("image formatted")
}

func Ls(c *ishell.Context) {
	vfs := getVfs(c)

	target := "."
	if len(c.Args) == 1 {
		target = c.Args[0]
	}

	file, err := vfs.Open(absPath(c, target))
	if err != nil {
		c.Err(err)
		return
	}

	files, err := file.Readdir(-1)
	if err != nil {
		c.Err(err)
		return
	}

	for _, v := range files {
		if v.IsDir() {
			c.Printf("+ %s\n", v.Name())
		} else {
			c.Printf("- %s (%d B)\n", v.Name(), v.Size())
		}
	}
}

func Cd(c *ishell.Context) {
	if !requireArgs(c, 1, "cd <path>") {
		return
	}
	vfs := getVfs(c)
	target := absPath(c, c.Args[0])

	info, err := vfs.Stat(target)
	if err != nil {
		c.Err(err)
		return
	}
	if !info.IsDir() {
		c.Err(fat16.NotDirectoryError{Path: target})
		return
	}

	cwd := c.Get("cwd").(*string)
	*cwd = target
	c.SetPrompt(target + " > ")
}

func Pwd(c *ishell.Context) {
	cwd := c.Get("cwd").(*string)
	c.Println(*cwd)
}

func Mkdir(c *ishell.Context) {
	if !requireArgs(c, 1, "mkdir <path>") {
		return
	}

	err := getVfs(c).Mkdir(absPath(c, c.Args[0]), 0755)
	if err != nil {
		c.Err(err)
	}
}

func Rmdir(c *ishell.Context) {
	if !requireArgs(c, 1, "rmdir <path>") {
		return
	}

	err := getFs(c).Rmdir(absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
	}
}

func Touch(c *ishell.Context) {
	if !requireArgs(c, 1, "touch <path>") {
		return
	}

	err := getFs(c).Create(absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
	}
}

func Rm(c *ishell.Context) {
	if !requireArgs(c, 1, "rm <path>") {
		return
	}

	err := getFs(c).Unlink(absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
	}
}

func Mv(c *ishell.Context) {
	if !requireArgs(c, 2, "mv <src> <dst>") {
		return
	}

	err := getVfs(c).Rename(absPath(c, c.Args[0]), absPath(c, c.Args[1]))
	if err != nil {
		c.Err(err)
	}
}

func Cp(c *ishell.Context) {
	if !requireArgs(c, 2, "cp <src> <dst>") {
		return
	}
	vfs := getVfs(c)

	srcFile, err := vfs.Open(absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
		return
	}

	dstFile, err := vfs.Create(absPath(c, c.Args[1]))
	if err != nil {
		c.Err(err)
		return
	}

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		c.Err(err)
	}
}

func Incp(c *ishell.Context) {
	if !requireArgs(c, 2, "incp <host-src> <dst>") {
		return
	}
	vfs := getVfs(c)

	srcFile, err := os.Open(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := vfs.Create(absPath(c, c.Args[1]))
	if err != nil {
		c.Err(err)
		return
	}

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		c.Err(err)
	}
}

func Outcp(c *ishell.Context) {
	if !requireArgs(c, 2, "outcp <src> <host-dst>") {
		return
	}
	vfs := getVfs(c)

	srcFile, err := vfs.Open(absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
		return
	}

	dstFile, err := os.Create(c.Args[1])
	if err != nil {
		c.Err(err)
		return
	}
	defer func() {
		_ = dstFile.Close()
	}()

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		c.Err(err)
	}
}

func Cat(c *ishell.Context) {
	if !requireArgs(c, 1, "cat <path>") {
		return
	}

	data, err := afero.ReadFile(getVfs(c), absPath(c, c.Args[0]))
	if err != nil {
		c.Err(err)
		return
	}

	c.Print(string(data))
}

func Info(c *ishell.Context) {
	fs := getFs(c)
	sb := fs.Superblock()

	c.Printf("cluster size:   %d B\n", sb.ClusterSize)
	c.Printf("total clusters: %d\n", fs.TotalClusters())
	c.Printf("free clusters:  %d\n", fs.FreeClusters())
	c.Printf("FAT offset:     %d\n", sb.FATOffset)
	c.Printf("root offset:    %d\n", sb.RootDirOffset)
	c.Printf("data offset:    %d\n", sb.DataOffset)
}

func Check(c *ishell.Context) {
	err := getFs(c).Check()
	if err != nil {
		c.Err(err)
		return
	}

	c.Println("filesystem is consistent")
}
