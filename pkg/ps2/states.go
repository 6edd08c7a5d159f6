package ps2

import (
	"log/slog"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/bus"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"
)

// State is a step of the keyboard protocol state machine.
type State uint8

const (
	StateInitialization State = iota
	StateDelayBeforeBAT
	StateSendingBAT
	StateWaitingForCommands
	StateSendingACK
	StateWaitingForACK
	StateEnablingKeyboard
	StateDisablingKeyboard
	StateSavingLastCommand
	StateReplyingWithResend
	StateReplyingWithEcho
	StateResendingLastByte
	StateApplyingLEDs

	numStates
)

var stateNames = [numStates]string{
	StateInitialization:     "initialization",
	StateDelayBeforeBAT:     "delay-before-bat",
	StateSendingBAT:         "sending-bat",
	StateWaitingForCommands: "waiting-for-commands",
	StateSendingACK:         "sending-ack",
	StateWaitingForACK:      "waiting-for-ack",
	StateEnablingKeyboard:   "enabling",
	StateDisablingKeyboard:  "disabling",
	StateSavingLastCommand:  "saving-last-command",
	StateReplyingWithResend: "replying-resend",
	StateReplyingWithEcho:   "replying-echo",
	StateResendingLastByte:  "resending-last-byte",
	StateApplyingLEDs:       "applying-leds",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return "unknown"
}

var handlers = [numStates]func(*Engine){
	StateInitialization:     (*Engine).initialize,
	StateDelayBeforeBAT:     (*Engine).delayBeforeBAT,
	StateSendingBAT:         (*Engine).sendingBAT,
	StateWaitingForCommands: (*Engine).waitForCommands,
	StateSendingACK:         (*Engine).sendACK,
	StateWaitingForACK:      (*Engine).waitForACK,
	StateEnablingKeyboard:   (*Engine).enable,
	StateDisablingKeyboard:  (*Engine).disable,
	StateSavingLastCommand:  (*Engine).saveLastCommand,
	StateReplyingWithResend: (*Engine).replyResend,
	StateReplyingWithEcho:   (*Engine).replyEcho,
	StateResendingLastByte:  (*Engine).resendLastByte,
	StateApplyingLEDs:       (*Engine).applyLEDs,
}

func (e *Engine) initialize() {
	e.enabled = false
	// All LEDs on for the duration of the self test.
	e.setLEDs(0x07)
	e.batStart = e.now()
	e.state = StateDelayBeforeBAT
	logging.Info(logging.ComponentEngine, "starting BAT")
}

func (e *Engine) delayBeforeBAT() {
	if e.now().Sub(e.batStart) < e.batDelay {
		return
	}
	e.setLEDs(0)
	e.timer.Reset()
	e.send(ReplyBATSuccess)
	e.state = StateSendingBAT
}

func (e *Engine) sendingBAT() {
	s := e.bus.Snapshot()
	if !s.Idle {
		return
	}
	// An inhibit cut the byte short. A pending host byte takes over instead;
	// the host answers to its own command.
	if s.Send == bus.Interrupted && !s.ByteAvailable {
		e.retransmits++
		e.send(ReplyBATSuccess)
		return
	}
	e.enabled = true
	e.busy = false
	e.state = StateWaitingForCommands
	logging.Info(logging.ComponentEngine, "BAT done")
}

func (e *Engine) waitForCommands() {
	e.busy = false

	if e.bus.ReceiveStatus() == bus.Failed {
		e.bus.ClearReceiveStatus()
		e.failures++
		e.state = StateReplyingWithResend
		return
	}

	b, ok := e.bus.ReceivedByte()
	if !ok {
		if e.enabled && !e.frames.Empty() {
			e.typeNextScanCode()
		}
		return
	}

	e.commands++
	if e.monitor != nil {
		e.monitor.HostByte(b)
	}
	if logging.Enabled(slog.LevelDebug) {
		logging.Debug(logging.ComponentEngine, "host byte", "byte", b)
	}

	if e.lastCommand&0x80 != 0 && b&0x80 == 0 {
		e.applyArgument(e.lastCommand, b)
		return
	}
	e.handleCommand(b)
}

// applyArgument handles the second byte of a two-byte command. The effect
// takes place once the ACK is on its way.
func (e *Engine) applyArgument(cmd, arg byte) {
	e.lastCommand = 0
	e.afterAck = StateWaitingForCommands
	e.state = StateSendingACK

	switch cmd {
	case cmdSetTypematicRate:
		e.timer.Set(arg)
	case cmdSetScanCodeSet:
		logging.Debug(logging.ComponentEngine, "scan code set change ignored", "set", arg)
	case cmdSetLEDs:
		e.ledArg = arg
		e.afterAck = StateApplyingLEDs
	}
}

func (e *Engine) handleCommand(cmd byte) {
	// Resend must leave the queue alone; every other command starts from an
	// empty queue and refuses new key events until it is done.
	if cmd != cmdResend {
		e.busy = true
		e.clearFrames()
	}

	switch {
	case cmd == cmdReadID:
		e.frames.Emit(readIDReply[:], true)
	case AwaitsArgument(cmd):
		e.saveCommand = cmd
		e.ack(StateSavingLastCommand)
	case cmd == cmdReset:
		e.ack(StateInitialization)
	case cmd == cmdDisable:
		e.ack(StateDisablingKeyboard)
	case cmd == cmdEnable:
		e.ack(StateEnablingKeyboard)
	case cmd == cmdEcho:
		e.state = StateReplyingWithEcho
	case cmd == cmdResend:
		e.state = StateResendingLastByte
	case isNoOp(cmd):
		e.ack(StateWaitingForCommands)
	default:
		logging.Warn(logging.ComponentEngine, "unknown command, resending last byte", "cmd", cmd)
		e.state = StateResendingLastByte
	}
}

func (e *Engine) ack(next State) {
	e.afterAck = next
	e.state = StateSendingACK
}

func (e *Engine) sendACK() {
	if !e.bus.IsIdle() {
		return
	}
	e.send(ReplyAcknowledge)
	e.state = StateWaitingForACK
}

func (e *Engine) waitForACK() {
	s := e.bus.Snapshot()
	if !s.Idle {
		return
	}
	if s.Send == bus.Complete {
		e.state = e.afterAck
	} else {
		e.state = StateWaitingForCommands
	}
}

func (e *Engine) enable() {
	e.enabled = true
	e.state = StateWaitingForCommands
}

func (e *Engine) disable() {
	e.enabled = false
	e.state = StateWaitingForCommands
}

func (e *Engine) saveLastCommand() {
	e.lastCommand = e.saveCommand
	e.state = StateWaitingForCommands
}

func (e *Engine) replyResend() {
	if !e.bus.IsIdle() {
		return
	}
	e.send(ReplyResend)
	e.state = StateWaitingForCommands
}

func (e *Engine) replyEcho() {
	if !e.bus.IsIdle() {
		return
	}
	e.send(ReplyEcho)
	e.state = StateWaitingForCommands
}

func (e *Engine) resendLastByte() {
	s := e.bus.Snapshot()
	if !s.Idle {
		return
	}
	e.send(s.LastSent)
	e.state = StateWaitingForCommands
}

func (e *Engine) applyLEDs() {
	e.setLEDs(e.ledArg)
	e.state = StateWaitingForCommands
}
