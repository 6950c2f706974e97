package emitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchgen/pkg/model"
)

func sampleAssignment() *model.Assignment {
	return &model.Assignment{Loads: []model.NodeLoad{
		{Node: 1, Batches: []string{"B001", "B004"}, Total: 60},
		{Node: 2, Batches: []string{}, Total: 0},
		{Node: 3, Batches: []string{"B002", "B003"}, Total: 50},
	}}
}

func TestBuild(t *testing.T) {
	art := Build(sampleAssignment(), model.StartTime{Hour: 18}, "123456789", Options{})

	assert.Equal(t, "123456789", art.CT)
	assert.Equal(t, "America/Los_Angeles", art.Gate.TimeZone)
	assert.Equal(t, 110, art.Confirm.TotalHosts)
	assert.Equal(t, "yes", art.Confirm.Affirmative)
	assert.Equal(t, "/home/user/aa.sh", art.Dispatch.Executor)

	require.Len(t, art.Dispatch.Launches, 2)
	assert.Equal(t, model.NodeID(1), art.Dispatch.Launches[0].Node)
	assert.Equal(t, []string{"123456789B001", "123456789B004"}, art.Dispatch.Launches[0].Jobs)
	assert.Equal(t, model.NodeID(3), art.Dispatch.Launches[1].Node)
	assert.Equal(t, 50, art.Dispatch.Launches[1].Hosts)
}

func TestBuild_CustomOptions(t *testing.T) {
	opts := Options{TimeZone: "UTC", Executor: "/opt/run.sh", RemoteShell: "ssh -o BatchMode=yes", Affirmative: "GO", Banner: "go"}
	art := Build(sampleAssignment(), model.StartTime{Hour: 6, Minute: 5}, "CT1", opts)
	script := art.Render()

	assert.Contains(t, script, "export TZ='UTC'\n")
	assert.Contains(t, script, `AA="/opt/run.sh"`)
	assert.Contains(t, script, `ssh -o BatchMode=yes $NODE1 "$AA CT1B001; $AA CT1B004; echo 'NODE1 job completed!'" &`)
	assert.Contains(t, script, `if [[ $choice != "GO" ]]; then`)
	assert.Contains(t, script, "start_time=$(date -d '06:05 today' +%s)")
}

func TestLaunch_Command(t *testing.T) {
	l := Launch{Node: 4, Jobs: []string{"CTB1", "CTB2"}}
	assert.Equal(t, "$NODE4", l.Target())
	assert.Equal(t, "x CTB1; x CTB2; echo 'NODE4 job completed!'", l.Command("x"))
}

func TestRender(t *testing.T) {
	script := Build(sampleAssignment(), model.StartTime{Hour: 18}, "123456789", Options{}).Render()

	want := []string{
		"#!/bin/bash\n",
		"export TZ='America/Los_Angeles'\n",
		"start_time=$(date -d '18:00 today' +%s)\n",
		"if [[ $current_time -lt $start_time ]]; then\n",
		"    echo 'Scheduled start time: 18:00.'\n",
		"    echo $(date -u -d @$time_until +%H:%M:%S)\n",
		"    exit 1\n",
		"echo \"Executing 123456789 with 110 hosts.\"\n",
		"read -r choice\n",
		"if [[ $choice != \"yes\" ]]; then\n",
		"AA=\"/home/user/aa.sh\"\n",
		"ssh $NODE1 \"$AA 123456789B001; $AA 123456789B004; echo 'NODE1 job completed!'\" &\n",
		"ssh $NODE3 \"$AA 123456789B002; $AA 123456789B003; echo 'NODE3 job completed!'\" &\n",
		"\nwait\nchmod -x $0\n",
		"echo \"All batches for 123456789 completed!\"\nexit 0\n",
	}
	for _, w := range want {
		assert.Contains(t, script, w)
	}

	// 协议阶段顺序：GATE -> CONFIRM -> DISPATCH -> DONE
	order := []string{"start_time=", "read -r choice", "ssh $NODE1", "ssh $NODE3", "\nwait\n", "chmod -x $0", "All batches for"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(script, marker)
		require.Greater(t, idx, last, marker)
		last = idx
	}

	assert.NotContains(t, script, "NODE2")
	assert.True(t, strings.HasSuffix(script, "exit 0\n"))
	assert.Equal(t, 2, strings.Count(script, "\" &\n"))
}

func TestSummary(t *testing.T) {
	lines := Summary(sampleAssignment())

	assert.Equal(t, []string{
		"NODE1 @ B001 B004 @ 60",
		"NODE3 @ B002 B003 @ 50",
	}, lines)
}

func TestSummary_AllIdle(t *testing.T) {
	a := &model.Assignment{Loads: []model.NodeLoad{{Node: 1, Batches: []string{}}}}
	assert.Empty(t, Summary(a))
}

func TestCenter(t *testing.T) {
	got := center("ex uno plures")
	assert.Equal(t, "            ex uno plures", got)
	assert.Equal(t, strings.Repeat("x", 50), center(strings.Repeat("x", 50)))
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	require.NoError(t, Options{}.Validate())

	ok := Options{RemoteShell: "ssh -o BatchMode=yes", Banner: "it's go time", Executor: "/opt/run-v2.sh"}
	require.NoError(t, ok.Validate())
	script := Build(sampleAssignment(), model.StartTime{Hour: 9}, "CT", ok).Render()
	assert.Contains(t, script, "echo \""+strings.Repeat(" ", 13)+"it's go time\"\n")
	assert.Contains(t, script, `ssh -o BatchMode=yes $NODE1 "$AA CTB001; $AA CTB004; echo 'NODE1 job completed!'" &`)

	tests := []struct {
		name string
		opts Options
	}{
		{"执行器含双引号", Options{Executor: `/opt/a"b.sh`}},
		{"执行器含单引号", Options{Executor: `/opt/a'b.sh`}},
		{"执行器含变量", Options{Executor: "$HOME/aa.sh"}},
		{"横幅含命令替换", Options{Banner: "go $(id)"}},
		{"横幅含反引号", Options{Banner: "go `id`"}},
		{"横幅含反斜杠", Options{Banner: `go\`}},
		{"横幅含换行", Options{Banner: "go\nnow"}},
		{"远程命令含分号", Options{RemoteShell: "ssh; rm -rf /"}},
		{"远程命令含管道", Options{RemoteShell: "ssh | tee"}},
		{"远程命令含双引号", Options{RemoteShell: `ssh -o "x"`}},
		{"确认词含空格", Options{Affirmative: "yes sir"}},
		{"时区含单引号", Options{TimeZone: "UTC'"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts.Validate())
		})
	}
}
