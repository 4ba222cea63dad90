package firmware

import "github.com/pkg/errors"

// Kernel layout table sizes.
const (
	MaxKernelPrograms            = 5
	MaxKernelConfigurations      = 10
	MaxKernelConfigurationsMulti = 64
)

type kernelParser struct {
	r *reader
}

// maxConfigurations returns the configuration table size for a channel
// count.
func maxConfigurations(ndev int) int {
	if ndev >= 4 {
		return MaxKernelConfigurationsMulti
	}
	return MaxKernelConfigurations
}

// variableHeader reads the device identity and both size tables. The
// returned slices are sized to the declared counts with Size filled in.
func (p *kernelParser) variableHeader(fw *Firmware, ndev int) error {
	family, err := p.r.u16()
	if err != nil {
		return errors.Wrap(err, "device family")
	}
	device, err := p.r.u16()
	if err != nil {
		return errors.Wrap(err, "device")
	}
	fw.DeviceFamily, fw.Device = uint32(family), uint32(device)
	if fw.NDev, err = checkDevice(fw.DeviceFamily, fw.Device); err != nil {
		return err
	}
	if fw.NDev != ndev {
		return &ChannelCountError{Device: int(fw.Device), Got: fw.NDev, Want: ndev}
	}

	nprog, err := p.r.u32()
	if err != nil {
		return errors.Wrap(err, "program count")
	}
	if nprog == 0 || nprog > MaxKernelPrograms {
		return errors.Wrapf(ErrProgramCount, "%d programs", nprog)
	}
	fw.Programs = make([]Program, nprog)
	for i := 0; i < MaxKernelPrograms; i++ {
		size, err := p.r.u32()
		if err != nil {
			return errors.Wrap(err, "program size table")
		}
		if i < len(fw.Programs) {
			fw.Programs[i].Size = size
		}
	}

	nconf, err := p.r.u32()
	if err != nil {
		return errors.Wrap(err, "configuration count")
	}
	maxConf := maxConfigurations(fw.NDev)
	if nconf == 0 || int(nconf) > maxConf {
		return errors.Wrapf(ErrConfigurationCount, "%d configurations, max %d", nconf, maxConf)
	}
	fw.Configurations = make([]Configuration, nconf)
	for i := 0; i < maxConf; i++ {
		size, err := p.r.u32()
		if err != nil {
			return errors.Wrap(err, "configuration size table")
		}
		if i < len(fw.Configurations) {
			fw.Configurations[i].Size = size
		}
	}
	return nil
}

func (p *kernelParser) programs(programs []Program) error {
	for i := range programs {
		if err := p.program(&programs[i]); err != nil {
			return errors.Wrapf(err, "program %d", i)
		}
	}
	return nil
}

func (p *kernelParser) program(prog *Program) error {
	var err error
	if prog.Name, err = p.r.name(); err != nil {
		return errors.Wrap(err, "name")
	}
	for _, dst := range []*byte{&prog.AppMode, &prog.PDMI2SMode, &prog.ISnsPD, &prog.VSnsPD} {
		if *dst, err = p.r.u8(); err != nil {
			return errors.Wrap(err, "flags")
		}
	}
	if err := p.r.skip(3); err != nil {
		return errors.Wrap(err, "reserved")
	}
	if prog.PowerLDG, err = p.r.u8(); err != nil {
		return errors.Wrap(err, "power LDG")
	}
	return errors.Wrap(p.data(&prog.Data), "data")
}

func (p *kernelParser) configurations(confs []Configuration) error {
	for i := range confs {
		if err := p.configuration(&confs[i]); err != nil {
			return errors.Wrapf(err, "configuration %d", i)
		}
	}
	return nil
}

func (p *kernelParser) configuration(c *Configuration) error {
	var err error
	if c.Name, err = p.r.name(); err != nil {
		return errors.Wrap(err, "name")
	}
	if c.Orientation, err = p.r.u8(); err != nil {
		return errors.Wrap(err, "orientation")
	}
	if c.Devices, err = p.r.u8(); err != nil {
		return errors.Wrap(err, "devices")
	}
	if c.Program, err = p.r.u16(); err != nil {
		return errors.Wrap(err, "program")
	}
	if c.SamplingRate, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "sampling rate")
	}
	if c.PLLSrc, err = p.r.u16(); err != nil {
		return errors.Wrap(err, "PLL source")
	}
	if c.FsRate, err = p.r.u16(); err != nil {
		return errors.Wrap(err, "FS rate")
	}
	if c.PLLSrcRate, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "PLL source rate")
	}
	return errors.Wrap(p.data(&c.Data), "data")
}

func (p *kernelParser) data(d *Data) error {
	n, err := p.r.u32()
	if err != nil {
		return errors.Wrap(err, "block count")
	}
	if uint64(n) > uint64(len(p.r.buf)) {
		return errors.Wrapf(ErrTruncated, "%d blocks", n)
	}

	d.Blocks = make([]Block, n)
	for i := range d.Blocks {
		if err := p.block(&d.Blocks[i]); err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
	}
	return nil
}

func (p *kernelParser) block(b *Block) error {
	var err error
	if b.Type, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "type")
	}
	raw, err := p.r.bytes(4)
	if err != nil {
		return errors.Wrap(err, "checksums")
	}
	b.PChkPresent, b.PChk = raw[0] != 0, raw[1]
	b.YChkPresent, b.YChk = raw[2] != 0, raw[3]

	if b.Size, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "size")
	}
	if b.Sublocks, err = p.r.u32(); err != nil {
		return errors.Wrap(err, "sub-block count")
	}
	if uint64(b.Size) > uint64(len(p.r.buf)) {
		return errors.Wrapf(ErrTruncated, "block size %d", b.Size)
	}
	if b.Data, err = p.r.bytes(int(b.Size)); err != nil {
		return errors.Wrap(err, "payload")
	}
	return nil
}
