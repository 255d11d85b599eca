package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// DetectorConfig configures the detector subprocess. The process owns the
// camera and the detection model; it writes one framed result per frame.
type DetectorConfig struct {
	// Command is the program and its arguments, e.g. ["python3", "detect.py"].
	Command []string
	// CameraIndex, InferenceSize, and Confidence are passed through as
	// --camera, --size, and --conf flags. They are opaque to the controller.
	CameraIndex   int
	InferenceSize int
	Confidence    float64
}

// DetectorResult is one message from the detector.
//
// Wire format on stdout: a 4-byte big-endian length followed by that many
// bytes of msgpack encoding this struct.
type DetectorResult struct {
	Count int    `msgpack:"count"`
	Error string `msgpack:"error,omitempty"`
	// EOS marks the end of the video stream.
	EOS bool `msgpack:"eos,omitempty"`
}

// maxFrameSize bounds a single result message.
const maxFrameSize = 1 << 20

// DetectorSource runs the detector as a child process.
type DetectorSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	pump   *pump
	lenBuf [4]byte

	waitOnce sync.Once
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// Args returns the flags appended to Command.
func (c DetectorConfig) Args() []string {
	var args []string
	if len(c.Command) > 1 {
		args = append(args, c.Command[1:]...)
	}
	args = append(args,
		"--camera", strconv.Itoa(c.CameraIndex),
		"--size", strconv.Itoa(c.InferenceSize),
		"--conf", strconv.FormatFloat(c.Confidence, 'f', -1, 64),
	)
	return args
}

// StartDetector spawns the detector process. Initialization failure (bad
// command, process won't start) is returned here so it is reported before
// the control loop runs.
func StartDetector(cfg DetectorConfig) (*DetectorSource, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("detector command is required")
	}

	cmd := exec.Command(cfg.Command[0], cfg.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("detector stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("detector stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start detector: %w", err)
	}

	d := &DetectorSource{
		cmd:    cmd,
		stdout: stdout,
	}
	d.pump = newPump(d.readResult)

	go logStderr(stderr)

	log.Printf("detector started: pid=%d cmd=%v", cmd.Process.Pid, cmd.Args)
	return d, nil
}

func (d *DetectorSource) readResult() (int, error) {
	res, err := ReadDetectorResult(d.stdout, d.lenBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, d.exitedWithoutEOS()
		}
		return 0, &AcquisitionError{Source: "detector", Err: err}
	}
	if res.Error != "" {
		return 0, &AcquisitionError{Source: "detector", Err: errors.New(res.Error)}
	}
	if res.EOS {
		return 0, ErrEndOfStream
	}
	return res.Count, nil
}

// exitedWithoutEOS classifies a stdout EOF that arrived without an EOS frame.
// A zero exit status is a clean end of stream; anything else, including a
// kill by signal, is a hard failure.
func (d *DetectorSource) exitedWithoutEOS() error {
	if err := d.wait(); err != nil {
		return &AcquisitionError{Source: "detector", Err: fmt.Errorf("exited without end of stream: %w", err)}
	}
	return ErrEndOfStream
}

// wait reaps the process once. It must only be called after stdout is
// drained or abandoned, since Wait closes the pipe.
func (d *DetectorSource) wait() error {
	d.waitOnce.Do(func() {
		d.waitErr = d.cmd.Wait()
	})
	return d.waitErr
}

// ReadDetectorResult reads one length-prefixed msgpack result from r.
// buf must hold at least 4 bytes. A clean EOF before the length prefix is
// returned as io.EOF.
func ReadDetectorResult(r io.Reader, buf []byte) (DetectorResult, error) {
	var res DetectorResult
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		if errors.Is(err, io.EOF) {
			return res, io.EOF
		}
		return res, fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if n > maxFrameSize {
		return res, fmt.Errorf("result too large: %d bytes", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return res, fmt.Errorf("read result (%d bytes): %w", n, err)
	}
	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// WriteDetectorResult writes one framed result to w. Detector implementations
// and tests use it to produce the wire format.
func WriteDetectorResult(w io.Writer, res DetectorResult) error {
	data, err := msgpack.Marshal(&res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Next returns the count from the next detector result.
func (d *DetectorSource) Next(ctx context.Context) (logic.Observation, error) {
	return d.pump.next(ctx)
}

// Close stops the detector. The process gets two seconds to exit after its
// stdout is closed before it is killed. The process is reaped either here,
// after reading has stopped, or by the reader once stdout hits EOF, so no
// buffered result is lost to the pipe closing.
func (d *DetectorSource) Close() error {
	d.closeOnce.Do(func() {
		d.pump.stop()
		d.stdout.Close()

		waitDone := make(chan error, 1)
		go func() {
			waitDone <- d.wait()
		}()

		var waitErr error
		select {
		case waitErr = <-waitDone:
		case <-time.After(2 * time.Second):
			log.Printf("detector did not exit, killing pid %d", d.cmd.Process.Pid)
			if err := d.cmd.Process.Kill(); err != nil {
				d.closeErr = fmt.Errorf("kill detector: %w", err)
				return
			}
			waitErr = <-waitDone
		}
		log.Printf("detector exited: %s", exitStatus(waitErr))
	})
	return d.closeErr
}

func exitStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Printf("detector: %s", sc.Text())
	}
}
