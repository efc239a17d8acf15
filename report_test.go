package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can-acar/lockprobe/nativeplatform"
)

func TestHolderInfoString(t *testing.T) {
	h := HolderInfo{PID: 1234, Name: "java.exe", Exe: `C:\jdk\bin\java.exe`, Titles: []string{"Minecraft 1.21"}}
	assert.Equal(t, `PID 1234 (java.exe) C:\jdk\bin\java.exe "Minecraft 1.21"`, h.String())
	assert.Equal(t, "PID 7", HolderInfo{PID: 7}.String())
}

func TestDescribeHolders(t *testing.T) {
	self := nativeplatform.ProcessID(os.Getpid())
	locks := &fakeLocks{
		supported: true,
		titles:    map[nativeplatform.ProcessID][]string{ghostPID: {"Game"}},
	}

	infos := describeHolders(context.Background(), locks, []nativeplatform.ProcessID{self, ghostPID})
	require.Len(t, infos, 2)

	assert.Equal(t, self, infos[0].PID)
	assert.NotEmpty(t, infos[0].Name)

	assert.Equal(t, ghostPID, infos[1].PID)
	assert.Empty(t, infos[1].Name)
	assert.Equal(t, []string{"Game"}, infos[1].Titles)
}
