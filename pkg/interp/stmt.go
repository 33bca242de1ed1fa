package interp

import (
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/vec"
)

func (st *state) exec(s source.Stmt) error {
	switch s := s.(type) {
	case *source.Skip:
		return nil
	case *source.Seq:
		if err := st.exec(s.S0); err != nil {
			return err
		}
		return st.exec(s.S1)
	case *source.Assign:
		return st.assign(s)
	case *source.Where:
		return st.where(s)
	case *source.If:
		taken, err := st.evalC(s.Cond)
		if err != nil {
			return err
		}
		if taken {
			return st.exec(s.Then)
		}
		return st.exec(s.Else)
	case *source.While:
		for {
			taken, err := st.evalC(s.Cond)
			if err != nil {
				return err
			}
			if !taken {
				return nil
			}
			if err := st.tick(); err != nil {
				return err
			}
			if err := st.exec(s.Body); err != nil {
				return err
			}
		}
	case *source.For:
		for {
			taken, err := st.evalC(s.Cond)
			if err != nil {
				return err
			}
			if !taken {
				return nil
			}
			if err := st.tick(); err != nil {
				return err
			}
			if err := st.exec(s.Body); err != nil {
				return err
			}
			if err := st.exec(s.Inc); err != nil {
				return err
			}
		}
	case *source.Print:
		return st.print(s)
	case *source.StoreRequest:
		return st.store(s.Data, s.Addr)
	case *source.Gather:
		addr, err := st.eval(s.Addr)
		if err != nil {
			return err
		}
		st.gather = append(st.gather, st.load(addr))
		return nil
	case *source.LoadReceive:
		v, ok := s.Dest.(*source.Var)
		if !ok || v.Kind != source.Standard {
			return st.errf("receive destination must be a variable")
		}
		if len(st.gather) == 0 {
			return st.errf("receive without outstanding gather")
		}
		st.env[v.Id] = st.gather[0]
		st.gather = st.gather[1:]
		return nil
	case *source.SetReadStride:
		v, err := st.eval(s.E)
		if err != nil {
			return err
		}
		st.readStride = v[0].I()
		return nil
	case *source.SetWriteStride:
		v, err := st.eval(s.E)
		if err != nil {
			return err
		}
		st.writeStride = v[0].I()
		return nil
	case *source.SemaInc, *source.SemaDec, *source.SendIRQ:
		// QPUs are interpreted one at a time; semaphores cannot block.
		return nil
	case *source.DMAStartRead:
		addr, err := st.eval(s.E)
		if err != nil {
			return err
		}
		base := uint32(addr[0])
		var data vec.Vec
		for i := 0; i < vec.NumLanes; i++ {
			data[i] = vec.Word(st.mem.Load(base + uint32(4*i)))
		}
		st.vpmRead = append(st.vpmRead, data)
		return nil
	case *source.DMAStartWrite, *source.DMAReadWait, *source.DMAWriteWait:
		// Stores complete at request time in this model.
		return nil
	}
	return st.errf("cannot interpret statement %T", s)
}

func (st *state) tick() error {
	st.loops++
	if st.loops > loopLimit {
		return st.errf("loop limit exceeded")
	}
	return nil
}

func (st *state) assign(s *source.Assign) error {
	switch lhs := s.Lhs.(type) {
	case *source.Var:
		if lhs.Kind != source.Standard {
			return st.errf("assignment to non-variable")
		}
		v, err := st.eval(s.Rhs)
		if err != nil {
			return err
		}
		old := st.env[lhs.Id]
		for i := range v {
			if !st.mask[i] {
				v[i] = old[i]
			}
		}
		st.env[lhs.Id] = v
		return nil
	case *source.Deref:
		return st.store(s.Rhs, lhs.Addr)
	}
	return st.errf("bad assignment target %T", s.Lhs)
}

func (st *state) store(dataE, addrE source.Expr) error {
	data, err := st.eval(dataE)
	if err != nil {
		return err
	}
	addr, err := st.eval(addrE)
	if err != nil {
		return err
	}
	for i := 0; i < vec.NumLanes; i++ {
		st.mem.Store(uint32(addr[i]), uint32(data[i]))
	}
	return nil
}

func (st *state) where(s *source.Where) error {
	m, err := st.evalB(s.Cond)
	if err != nil {
		return err
	}
	saved := st.mask
	for i := range st.mask {
		st.mask[i] = saved[i] && m[i]
	}
	if err := st.exec(s.Then); err != nil {
		return err
	}
	for i := range st.mask {
		st.mask[i] = saved[i] && !m[i]
	}
	if err := st.exec(s.Else); err != nil {
		return err
	}
	st.mask = saved
	return nil
}

func (st *state) print(s *source.Print) error {
	switch s.Kind {
	case source.PrintStr:
		st.out.WriteString(s.Str)
		return nil
	case source.PrintInt:
		v, err := st.eval(s.E)
		if err != nil {
			return err
		}
		st.out.Write(vec.AppendInt(nil, v))
		return nil
	default:
		v, err := st.eval(s.E)
		if err != nil {
			return err
		}
		st.out.Write(vec.AppendFloat(nil, v))
		return nil
	}
}
