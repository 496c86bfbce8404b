package main

import (
	"os"

	"k8s.io/klog"
)

func main() {
	defer klog.Flush()

	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
