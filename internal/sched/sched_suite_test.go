package sched

//go:generate mockgen -destination "mock_sched_test.go" -package $GOPACKAGE -write_package_comment=false vrtos/internal/sched Sink,Halter,Recorder
