package firmware

import "github.com/pkg/errors"

type legacyParser struct {
	r         *reader
	checksums bool
}

func (p *legacyParser) variableHeader(fw *Firmware) error {
	desc, err := p.r.cstring()
	if err != nil {
		return errors.Wrap(err, "description")
	}
	fw.Description = desc

	if fw.DeviceFamily, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "device family")
	}
	if fw.Device, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "device")
	}
	fw.NDev, err = checkDevice(fw.DeviceFamily, fw.Device)
	return err
}

func (p *legacyParser) programs() ([]Program, error) {
	n, err := p.r.u16()
	if err != nil {
		return nil, errors.Wrap(err, "program count")
	}

	programs := make([]Program, n)
	for i := range programs {
		if err := p.program(&programs[i]); err != nil {
			return nil, errors.Wrapf(err, "program %d", i)
		}
	}
	return programs, nil
}

func (p *legacyParser) program(prog *Program) error {
	start := p.r.off
	var err error

	if prog.Name, err = p.r.name(); err != nil {
		return errors.Wrap(err, "name")
	}
	if prog.Description, err = p.r.cstring(); err != nil {
		return errors.Wrap(err, "description")
	}
	for _, dst := range []*byte{&prog.AppMode, &prog.PDMI2SMode, &prog.ISnsPD, &prog.VSnsPD, &prog.PowerLDG} {
		if *dst, err = p.r.u8(); err != nil {
			return errors.Wrap(err, "flags")
		}
	}
	if err := p.data(&prog.Data); err != nil {
		return errors.Wrap(err, "data")
	}
	prog.Size = uint32(p.r.off - start)
	return nil
}

func (p *legacyParser) configurations() ([]Configuration, error) {
	n, err := p.r.u16()
	if err != nil {
		return nil, errors.Wrap(err, "configuration count")
	}

	confs := make([]Configuration, n)
	for i := range confs {
		if err := p.configuration(&confs[i]); err != nil {
			return nil, errors.Wrapf(err, "configuration %d", i)
		}
	}
	return confs, nil
}

func (p *legacyParser) configuration(c *Configuration) error {
	start := p.r.off
	var err error

	if c.Name, err = p.r.name(); err != nil {
		return errors.Wrap(err, "name")
	}
	if c.Description, err = p.r.cstring(); err != nil {
		return errors.Wrap(err, "description")
	}
	if c.Orientation, err = p.r.u8(); err != nil {
		return errors.Wrap(err, "orientation")
	}
	if c.Devices, err = p.r.u8(); err != nil {
		return errors.Wrap(err, "devices")
	}
	prog, err := p.r.u8()
	if err != nil {
		return errors.Wrap(err, "program")
	}
	c.Program = uint16(prog)
	if c.SamplingRate, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "sampling rate")
	}
	src, err := p.r.u8()
	if err != nil {
		return errors.Wrap(err, "PLL source")
	}
	c.PLLSrc = uint16(src)
	if c.PLLSrcRate, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "PLL source rate")
	}
	if c.FsRate, err = p.r.u16(); err != nil {
		return errors.Wrap(err, "FS rate")
	}
	if err := p.data(&c.Data); err != nil {
		return errors.Wrap(err, "data")
	}
	c.Size = uint32(p.r.off - start)
	return nil
}

func (p *legacyParser) calibrations() ([]Calibration, error) {
	n, err := p.r.u16()
	if err != nil {
		return nil, errors.Wrap(err, "calibration count")
	}
	if n != 1 {
		return nil, errors.Wrapf(ErrUnsupportedCalibrationCount, "%d calibrations", n)
	}

	var cal Calibration
	if cal.Name, err = p.r.name(); err != nil {
		return nil, errors.Wrap(err, "calibration name")
	}
	if cal.Description, err = p.r.cstring(); err != nil {
		return nil, errors.Wrap(err, "calibration description")
	}
	if cal.Program, err = p.r.u8(); err != nil {
		return nil, errors.Wrap(err, "calibration program")
	}
	if cal.Configuration, err = p.r.u8(); err != nil {
		return nil, errors.Wrap(err, "calibration configuration")
	}
	if err := p.data(&cal.Data); err != nil {
		return nil, errors.Wrap(err, "calibration data")
	}
	return []Calibration{cal}, nil
}

func (p *legacyParser) data(d *Data) error {
	var err error
	if d.Name, err = p.r.name(); err != nil {
		return errors.Wrap(err, "name")
	}
	if d.Description, err = p.r.cstring(); err != nil {
		return errors.Wrap(err, "description")
	}
	n, err := p.r.u16()
	if err != nil {
		return errors.Wrap(err, "block count")
	}

	d.Blocks = make([]Block, n)
	for i := range d.Blocks {
		if err := p.block(&d.Blocks[i]); err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
	}
	return nil
}

func (p *legacyParser) block(b *Block) error {
	var err error
	if b.Type, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "type")
	}
	if p.checksums {
		raw, err := p.r.bytes(4)
		if err != nil {
			return errors.Wrap(err, "checksums")
		}
		b.PChkPresent, b.PChk = raw[0] != 0, raw[1]
		b.YChkPresent, b.YChk = raw[2] != 0, raw[3]
	}
	if b.Commands, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "command count")
	}
	if uint64(b.Commands)*4 > uint64(len(p.r.buf)) {
		return errors.Wrapf(ErrTruncated, "%d commands", b.Commands)
	}
	if b.Data, err = p.r.bytes(int(b.Commands) * 4); err != nil {
		return errors.Wrap(err, "commands")
	}
	b.Size = b.Commands * 4
	return nil
}
