package main

import (
	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp"
)

type sketchInfo struct {
	Path         string `json:"path"`
	Reference    string `json:"reference"`
	Name         string `json:"name,omitempty"`
	KSize        int    `json:"ksize,omitempty"`
	Scaled       uint64 `json:"scaled,omitempty"`
	HashFunction string `json:"hash_function,omitempty"`
	Seed         uint32 `json:"seed"`
	Hashes       uint64 `json:"hashes"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	Checksum     string `json:"checksum"`
	Error        string `json:"error,omitempty"`
}

func infoCommand(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE...",
		Short: "Show header fields and verify checksums of sketch files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]sketchInfo, 0, len(args))
			failed := false
			for _, path := range args {
				info := inspectSketch(path)
				if info.Error != "" {
					failed = true
				}
				infos = append(infos, info)
			}
			if err := writeOutput(cmd.OutOrStdout(), infos); err != nil {
				return err
			}
			if failed {
				return exitError
			}
			return nil
		},
	}
}

func inspectSketch(path string) sketchInfo {
	info := sketchInfo{Path: path, Reference: fqcomp.ReferenceName(path), Checksum: "unchecked"}
	sf, err := fqcomp.OpenSketchFile(path)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	defer sf.Close()

	p := sf.Params()
	info.Name = sf.Name()
	info.KSize = p.KSize
	info.Scaled = p.Scaled
	info.HashFunction = p.HashFunction.String()
	info.Seed = p.Seed
	info.Hashes = sf.NumHashes()
	info.SizeBytes = sf.Size()

	if err := sf.Verify(); err != nil {
		info.Checksum = "failed"
		info.Error = err.Error()
		return info
	}
	info.Checksum = "ok"
	if _, err := sf.Sketch(); err != nil {
		info.Error = err.Error()
	}
	return info
}
