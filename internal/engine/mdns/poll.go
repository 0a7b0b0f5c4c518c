package mdns

import (
	"errors"
	"net"
	"time"
)

// Execute 执行到期的周期性工作
func (e *Engine) Execute() {
	e.execute(e.now())
}

// Poll 最多等待 budget，处理期间到达的报文和 NAT 结果
func (e *Engine) Poll(budget time.Duration) {
	if !e.initialized {
		return
	}
	e.recvOnce.Do(e.startReceivers)

	select {
	case <-e.traversal.Ready():
		e.traversal.Execute(e.now())
		return
	default:
	}

	if wait := e.untilNextEvent(e.now()); wait < budget {
		budget = wait
	}
	timer := time.NewTimer(max(budget, 0))
	defer timer.Stop()

	select {
	case pkt := <-e.inbound:
		e.handlePacket(pkt, e.now())
		e.drainInbound()
	case <-e.traversal.Ready():
		e.traversal.Execute(e.now())
	case <-timer.C:
	}
}

// drainInbound 处理已排队的报文，不阻塞
func (e *Engine) drainInbound() {
	for {
		select {
		case pkt := <-e.inbound:
			e.handlePacket(pkt, e.now())
		default:
			return
		}
	}
}

// startReceivers 为每个套接字启动接收协程
//
// 接收协程只把报文放入队列，处理在 Poll 中进行。
func (e *Engine) startReceivers() {
	for _, s := range e.sockets {
		e.wg.Add(1)
		go e.receive(s)
	}
}

func (e *Engine) receive(s *socket) {
	defer e.wg.Done()
	buf := make([]byte, maxPacketSize)
	for {
		pkt, err := s.read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-e.done:
				return
			default:
			}
			log.Debug("接收报文失败", "err", err)
			continue
		}
		select {
		case e.inbound <- pkt:
		case <-e.done:
			return
		}
	}
}
