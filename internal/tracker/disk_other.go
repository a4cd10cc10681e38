//go:build !unix

package tracker

func TmpFreeSpaceMB() int64 { return 0 }
