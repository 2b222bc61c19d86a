// Command bootstrapgen regenerates the container bundle checked in under deploy/.
package main

import (
	"flag"
	"fmt"
	"os"

	"pkt.systems/halolight/bootstrap"
)

func main() {
	opts := bootstrap.Options{}
	output := flag.String("o", "deploy", "output directory")
	force := flag.Bool("force", false, "overwrite existing files")
	flag.BoolVar(&opts.SeedUsers, "seed-users", true, "keep the demo users in the container config")
	flag.BoolVar(&opts.JWT, "jwt", true, "issue signed JWT tokens in the container")
	flag.StringVar(&opts.ImageTag, "tag", "", "image tag (defaults to the build version)")
	flag.Func("set", "override a container config key (key=value, repeatable)", func(raw string) error {
		override, err := bootstrap.ParseOverride(raw)
		if err != nil {
			return err
		}
		opts.Overrides = append(opts.Overrides, override)
		return nil
	})
	flag.Parse()

	if err := run(*output, *force, opts); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrapgen:", err)
		os.Exit(1)
	}
}

func run(output string, force bool, opts bootstrap.Options) error {
	files, err := bootstrap.DefaultRepoBundle(opts)
	if err != nil {
		return err
	}
	paths, err := bootstrap.WriteFiles(output, files, force)
	if err != nil {
		return err
	}
	for _, path := range []string{paths.ConfigPath, paths.ComposePath, paths.ContainerfilePath} {
		fmt.Println(path)
	}
	return nil
}
